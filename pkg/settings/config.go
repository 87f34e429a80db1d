package settings

// Config is the top-level configuration of the cqueue binary.
type Config struct {
	Logger Logger `mapstructure:"logger" yaml:"logger"`
	Queue  Queue  `mapstructure:"queue" yaml:"queue"`
	Stress Stress `mapstructure:"stress" yaml:"stress"`
	Server Server `mapstructure:"server" yaml:"server"`
}

// Logger is the configuration for the logger
type Logger struct {
	LogLevel    string `mapstructure:"log_level" yaml:"log_level" validate:"oneof=debug info warn error dpanic panic fatal"`
	FileLogName string `mapstructure:"file_log_name" yaml:"file_log_name"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups" validate:"gte=0"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age" validate:"gte=0"`   // Days
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size" validate:"gte=0"` // Megabytes
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// Queue is the configuration for the process-wide queue
type Queue struct {
	NodeCache int `mapstructure:"node_cache" yaml:"node_cache" validate:"gte=0,lte=1048576"` // Recycled nodes; 0 disables
}

// Stress is the configuration for the producer/consumer workload
type Stress struct {
	Producers        int    `mapstructure:"producers" yaml:"producers" validate:"gte=1"`
	Consumers        int    `mapstructure:"consumers" yaml:"consumers" validate:"gte=1"`
	ItemsPerProducer int    `mapstructure:"items_per_producer" yaml:"items_per_producer" validate:"gte=1"`
	Mode             string `mapstructure:"mode" yaml:"mode" validate:"oneof=blocking batch"`
	BatchSize        int    `mapstructure:"batch_size" yaml:"batch_size" validate:"gte=1"`
}

// Server is the configuration for the stats endpoint
type Server struct {
	Mode string `mapstructure:"mode" yaml:"mode" validate:"oneof=debug release test"`
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port" validate:"gte=0,lte=65535"`
}
