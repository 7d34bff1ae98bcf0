package config

import (
	"time"

	"github.com/customeros/replydesk/internal/logger"
	"github.com/customeros/replydesk/internal/tracing"
)

type AppConfig struct {
	APIPort string `env:"PORT,required" envDefault:"12222"`
	APIKey  string `env:"API_KEY,notEmpty"`
	Locale  string `env:"APP_LOCALE" envDefault:"ko"`
	Logger  *logger.Config
	Tracing *tracing.JaegerConfig
}

type GmailConfig struct {
	ClientID     string `env:"GMAIL_CLIENT_ID"`
	ClientSecret string `env:"GMAIL_CLIENT_SECRET"`
	RefreshToken string `env:"GMAIL_REFRESH_TOKEN"`
	// skips the profile lookup when set
	UserAddress string `env:"GMAIL_USER_ADDRESS"`
	Endpoint    string `env:"GMAIL_API_ENDPOINT"`
}

type GeminiConfig struct {
	ApiKey            string        `env:"GEMINI_API_KEY"`
	Model             string        `env:"GEMINI_MODEL" envDefault:"gemini-1.5-pro-latest"`
	Url               string        `env:"GEMINI_API_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta"`
	Timeout           time.Duration `env:"GEMINI_TIMEOUT" envDefault:"60s"`
	RequestsPerMinute int           `env:"GEMINI_REQUESTS_PER_MINUTE" envDefault:"30"`
}

type StorageConfig struct {
	R2AccountID     string `env:"CLOUDFLARE_R2_ACCOUNT_ID"`
	AwsRegion       string `env:"AWS_REGION" envDefault:"eu-west-1"`
	AccessKeyID     string `env:"STORAGE_ACCESS_KEY_ID"`
	AccessKeySecret string `env:"STORAGE_ACCESS_KEY_SECRET"`
	BucketName      string `env:"BUCKET_NAME_ATTACHMENTS" envDefault:"attachments"`
	Prefix          string `env:"ATTACHMENTS_PREFIX" envDefault:"attachments/"`
}

type CacheConfig struct {
	Queries            []string `env:"CACHE_LIST_QUERIES" envSeparator:";" envDefault:"is:unread;is:read in:inbox -in:sent"`
	LabelIDs           []string `env:"CACHE_LIST_LABELS" envDefault:"INBOX"`
	MaxResultsPerQuery int64    `env:"CACHE_LIST_MAX_RESULTS" envDefault:"15"`
	RefreshConcurrency int      `env:"CACHE_REFRESH_CONCURRENCY" envDefault:"5"`
}

type GeneratorConfig struct {
	PromptTemplatePath   string `env:"PROMPT_TEMPLATE_PATH"`
	ConsultationBodyPath string `env:"CONSULTATION_BODY_PATH"`
	SamplesPath          string `env:"SAMPLES_PATH"`
	Persona              string `env:"PERSONA" envDefault:"iMate, the assistant of Taeyang Tax Accounting"`
	ReferenceCodePattern string `env:"GENERATOR_REFERENCE_CODE_PATTERN" envDefault:"\\bFX[-_]?[0-9A-Za-z]+\\b"`
	RetrieverTopK        int    `env:"RETRIEVER_TOP_K" envDefault:"2"`
	MaxSimpleCandidates  int    `env:"GENERATOR_MAX_CANDIDATES" envDefault:"3"`
}

type ReplyConfig struct {
	SignaturePath   string `env:"SIGNATURE_PATH"`
	SenderName      string `env:"SENDER_NAME"`
	MessageIDDomain string `env:"MESSAGE_ID_DOMAIN"`
}

type ExtractorConfig struct {
	QuoteMarkers []string `env:"EXTRACTOR_QUOTE_MARKERS" envSeparator:"|"`
}

type ClassifierConfig struct {
	IgnoreSenders []string `env:"CLASSIFIER_IGNORE_SENDERS"`
	SkipAutomated bool     `env:"CLASSIFIER_SKIP_AUTOMATED" envDefault:"true"`
}
