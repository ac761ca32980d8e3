package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const (
	ShutdownGrace = 10 * time.Second
)

const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"
)

// Cart configures the cart client app.
type Cart struct {
	HTTPAddr       string
	DBPath         string
	Ephemeral      bool
	CatalogVia     string
	CatalogURL     string
	CatalogTarget  string
	CatalogTimeout time.Duration
	ProductCache   int
	RabbitURL      string
	RabbitExchange string
	LogLevel       zerolog.Level
}

// Catalog configures the catalog service.
type Catalog struct {
	HTTPAddr    string
	GRPCAddr    string
	DBPath      string
	SeedOnStart bool
	LogLevel    zerolog.Level
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	if n, err := strconv.Atoi(getenv(key, "")); err == nil {
		return n
	}
	return def
}

func getduration(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(getenv(key, "")); err == nil {
		return d
	}
	return def
}

func getbool(key string, def bool) bool {
	if b, err := strconv.ParseBool(getenv(key, "")); err == nil {
		return b
	}
	return def
}

func getlevel(key string) zerolog.Level {
	if l, err := zerolog.ParseLevel(getenv(key, "info")); err == nil && l != zerolog.NoLevel {
		return l
	}
	return zerolog.InfoLevel
}

// LoadDotEnv reads the given files (default ".env") into the environment
// without overriding variables already set. Missing files are ignored.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

func LoadCart() Cart {
	return Cart{
		HTTPAddr:       getenv("CART_HTTP_ADDR", ":3000"),
		DBPath:         getenv("CART_DB_PATH", "./data/cart.db"),
		Ephemeral:      getbool("CART_EPHEMERAL", false),
		CatalogVia:     strings.ToLower(getenv("CATALOG_TRANSPORT", TransportHTTP)),
		CatalogURL:     getenv("CATALOG_URL", "http://localhost:3333"),
		CatalogTarget:  getenv("CATALOG_GRPC_TARGET", "localhost:50061"),
		CatalogTimeout: getduration("CATALOG_TIMEOUT", 5*time.Second),
		ProductCache:   getint("CART_PRODUCT_CACHE", 128),
		RabbitURL:      getenv("RABBITMQ_URL", ""),
		RabbitExchange: getenv("RABBIT_EXCHANGE", "rocketshoes.cart"),
		LogLevel:       getlevel("LOG_LEVEL"),
	}
}

func LoadCatalog() Catalog {
	return Catalog{
		HTTPAddr:    getenv("CATALOG_HTTP_ADDR", ":3333"),
		GRPCAddr:    getenv("CATALOG_GRPC_ADDR", ":50061"),
		DBPath:      getenv("CATALOG_DB_PATH", "./data/catalog.db"),
		SeedOnStart: getbool("CATALOG_SEED", true),
		LogLevel:    getlevel("LOG_LEVEL"),
	}
}
