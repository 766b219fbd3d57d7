package internal

import (
	"fmt"
	"strings"
	"time"

	"linkup/domain/mimetypes"
	"linkup/services"

	"github.com/samber/lo"
)

type Config struct {
	Host     string `env:"HOST,default=0.0.0.0"`
	Port     int    `env:"PORT,default=5001"`
	GRPCPort int    `env:"GRPC_PORT,default=5002"`
	LogLevel string `env:"LOG_LEVEL,default=INFO"`
	// Badger inspector, started only at DEBUG level
	DebugPort int `env:"DEBUG_PORT,default=8081"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`

	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=168h"`
	SecureCookies     bool          `env:"SECURE_COOKIES,default=false"`

	BufferSize           int           `env:"BUFFER_SIZE,default=256"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=2s"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=10s"`
	PingInterval         time.Duration `env:"WS_PING_INTERVAL,default=30s"`
	TrustQueryIdentity   bool          `env:"WS_TRUST_QUERY_IDENTITY,default=false"`

	MaxImageBytes       int64         `env:"MAX_IMAGE_BYTES,default=3145728"`
	AllowedImageFormats string        `env:"ALLOWED_IMAGE_FORMATS,default=jpeg|jpg|png"`
	UploadTimeout       time.Duration `env:"UPLOAD_TIMEOUT,default=30s"`
	ImageMaxDimension   int           `env:"IMAGE_MAX_DIMENSION,default=1000"`
	ImageQuality        int           `env:"IMAGE_QUALITY,default=80"`
	CloudinaryURL       string        `env:"CLOUDINARY_URL"`
	UploadDir           string        `env:"UPLOAD_DIR,default=./uploads"`
	PublicBaseURL       string        `env:"PUBLIC_BASE_URL,default=http://localhost:5001"`

	ModerationEnabled bool   `env:"MODERATION_ENABLED,default=true"`
	CharReplacement   string `env:"MODERATION_CHARACTER_REPLACEMENT,default=*"`

	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:5173"`
}

// ImagePolicy derives the image rules from the configuration.
func (c Config) ImagePolicy() (services.ImagePolicy, error) {
	allowed := mimetypes.ParseImageFormats(c.AllowedImageFormats)
	if len(allowed) == 0 {
		return services.ImagePolicy{}, fmt.Errorf("ALLOWED_IMAGE_FORMATS has no known format, got %q", c.AllowedImageFormats)
	}
	if c.MaxImageBytes <= 0 {
		return services.ImagePolicy{}, fmt.Errorf("MAX_IMAGE_BYTES must be positive, got %d", c.MaxImageBytes)
	}
	return services.ImagePolicy{
		MaxBytes:      c.MaxImageBytes,
		Allowed:       allowed,
		UploadTimeout: c.UploadTimeout,
		MaxDimension:  c.ImageMaxDimension,
		Quality:       c.ImageQuality,
	}, nil
}

// AllowedOrigins splits the CORS allow-list, dropping blanks.
func (c Config) AllowedOrigins() []string {
	origins := lo.Map(strings.Split(c.CORSAllowedOrigins, ","), func(o string, _ int) string {
		return strings.TrimSuffix(strings.TrimSpace(o), "/")
	})
	return lo.Compact(origins)
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"MODERATION_CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
