// Package conf holds the bootstrap configuration scanned from the config
// file at startup.
package conf

type Bootstrap struct {
	Server     *Server     `json:"server"`
	Data       *Data       `json:"data"`
	Moderation *Moderation `json:"moderation"`
}

type Server struct {
	HTTP HTTPServer `json:"http"`
}

type HTTPServer struct {
	Network        string `json:"network"`
	Addr           string `json:"addr"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type Data struct {
	Database Database `json:"database"`
	Redis    Redis    `json:"redis"`
	S3       S3       `json:"s3"`
}

type Database struct {
	Driver string `json:"driver"`
	Source string `json:"source"`
	Pool   Pool   `json:"pool"`
}

type Pool struct {
	MaxOpenConns    int32 `json:"max_open_conns"`
	MinIdleConns    int32 `json:"min_idle_conns"`
	MaxConnLifetime int32 `json:"max_conn_lifetime"` // minutes
	MaxConnIdleTime int32 `json:"max_conn_idle_time"` // minutes
}

type Redis struct {
	Addr                string `json:"addr"`
	Network             string `json:"network"`
	ReadTimeoutSeconds  int    `json:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `json:"write_timeout_seconds"`
}

type S3 struct {
	Endpoint        string `json:"endpoint"`
	Region          string `json:"region"`
	Bucket          string `json:"bucket"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	PublicBaseURL   string `json:"public_base_url"`
}

type Moderation struct {
	Workers               int    `json:"workers"`
	StorageTimeoutSeconds int    `json:"storage_timeout_seconds"`
	MaxImageEdge          int    `json:"max_image_edge"`
	MaxUploadBytes        int64  `json:"max_upload_bytes"`
	Vision                Vision `json:"vision"`
	Checks                Checks `json:"checks"`
	Bloom                 Bloom  `json:"bloom"`
}

type Vision struct {
	BaseURL        string `json:"base_url"`
	APIKey         string `json:"api_key"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type Checks struct {
	SubjectLabels     []string `json:"subject_labels"`
	SubjectMinScore   float64  `json:"subject_min_score"`
	SafetyThreshold   string   `json:"safety_threshold"`
	MaxTextRunes      int      `json:"max_text_runes"`
	MinDominantColors int      `json:"min_dominant_colors"`
}

type Bloom struct {
	Key       string `json:"key"`
	Bits      uint   `json:"bits"`
	HashFuncs uint   `json:"hash_funcs"`
}
