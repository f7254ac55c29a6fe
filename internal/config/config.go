package config

import (
	"strings"

	"github.com/ZilDuck/marketplace-settlement/internal/log"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Config struct {
	Env       string
	Name      string
	Network   string
	Index     string
	Debug     bool
	LogPath   string
	SentryDsn string
	ProgramId string
	ApiPort   string
	Devnet    bool

	// SignatureWindow is how far, in seconds, a signed request's timestamp may
	// drift from the daemon's clock.
	SignatureWindow int

	Market        MarketConfig
	ElasticSearch ElasticSearchConfig
	Aws           AwsConfig
	Messenger     MessengerConfig
	Client        ClientConfig
	Exchange      ExchangeConfig
	Snapshot      SnapshotConfig
}

// MarketConfig holds the values used to initialize the market when the daemon
// boots against an empty ledger. An empty Admin skips initialization.
type MarketConfig struct {
	Admin             string
	MintFeeBps        uint16
	TradeFeeBps       uint16
	RelistFeeBps      uint16
	MultisigAdmins    []string
	MultisigThreshold uint8
	TreasuryMints     []string
	// EnforceThreshold makes withdrawals need MultisigThreshold co-signers
	// rather than two whenever the threshold is higher.
	EnforceThreshold bool
}

type AwsConfig struct {
	AccessKey string
	SecretKey string
	Token     string
	Region    string
}

type ElasticSearchConfig struct {
	Enabled          bool
	Hosts            []string
	Sniff            bool
	HealthCheck      bool
	Debug            bool
	Aws              bool
	Username         string
	Password         string
	MappingDir       string
	BulkPersistCount int
	Refresh          string
}

type MessengerConfig struct {
	Driver      string
	AmqpUri     string
	SqsQueueUrl string
}

// ExchangeConfig registers a fixed quote pool as a swap program when both keys
// are set, plus every program listed in ProgramsFile.
type ExchangeConfig struct {
	FixedQuoteProgram string
	FixedQuotePool    string
	ProgramsFile      string
}

// SnapshotConfig selects where the ledger is persisted between restarts. An
// empty driver keeps the ledger in memory only.
type SnapshotConfig struct {
	Driver   string
	Dsn      string
	Key      string
	Interval int
}

// ClientConfig points the CLI at a daemon. Keypairs are keygen files whose
// keys sign every write.
type ClientConfig struct {
	ApiUrl   string
	Timeout  int
	Retries  int
	Keypairs []string
}

const defaultProgramId = "uogw4oywo9nb4gyX6euzQgTHSkLLuiLc1FCEz4fpFHC"

func Init(name string) {
	if err := godotenv.Load(".env"); err != nil {
		zap.L().With(zap.Error(err)).Debug("No .env file, reading the environment only")
	}

	viper.AutomaticEnv()
	setDefaults()
	viper.Set("APP_NAME", name)

	initLogger()
}

func initLogger() {
	log.NewLogger(Get().LogPath, Get().Debug, Get().SentryDsn)
}

func setDefaults() {
	viper.SetDefault("NETWORK", "solana")
	viper.SetDefault("INDEX_NAME", "marketplace")
	viper.SetDefault("DEBUG", false)
	viper.SetDefault("PROGRAM_ID", defaultProgramId)
	viper.SetDefault("API_PORT", "8080")
	viper.SetDefault("DEVNET", false)
	viper.SetDefault("API_SIGNATURE_WINDOW", 300)
	viper.SetDefault("MINT_FEE_BPS", 0)
	viper.SetDefault("TRADE_FEE_BPS", 0)
	viper.SetDefault("RELIST_FEE_BPS", 0)
	viper.SetDefault("MULTISIG_THRESHOLD", 2)
	viper.SetDefault("MULTISIG_ENFORCE_THRESHOLD", false)
	viper.SetDefault("ELASTIC_SEARCH_ENABLED", false)
	viper.SetDefault("ELASTIC_SEARCH_SNIFF", true)
	viper.SetDefault("ELASTIC_SEARCH_HEALTH_CHECK", true)
	viper.SetDefault("ELASTIC_SEARCH_MAPPING_DIR", "./mappings")
	viper.SetDefault("ELASTIC_SEARCH_BULK_PERSIST_COUNT", 300)
	viper.SetDefault("ELASTIC_SEARCH_REFRESH", "wait_for")
	viper.SetDefault("API_URL", "http://localhost:8080")
	viper.SetDefault("API_TIMEOUT", 30)
	viper.SetDefault("API_RETRIES", 3)
	viper.SetDefault("LEDGER_SNAPSHOT_KEY", "ledger")
	viper.SetDefault("LEDGER_SNAPSHOT_INTERVAL", 10)
}

func Get() *Config {
	return &Config{
		Env:       viper.GetString("ENV"),
		Name:      viper.GetString("APP_NAME"),
		Network:   viper.GetString("NETWORK"),
		Index:     viper.GetString("INDEX_NAME"),
		Debug:     viper.GetBool("DEBUG"),
		LogPath:   viper.GetString("LOG_PATH"),
		SentryDsn: viper.GetString("SENTRY_DSN"),
		ProgramId: viper.GetString("PROGRAM_ID"),
		ApiPort:   viper.GetString("API_PORT"),
		Devnet:    viper.GetBool("DEVNET"),

		SignatureWindow: viper.GetInt("API_SIGNATURE_WINDOW"),
		Market: MarketConfig{
			Admin:             viper.GetString("MARKET_ADMIN"),
			MintFeeBps:        uint16(viper.GetUint("MINT_FEE_BPS")),
			TradeFeeBps:       uint16(viper.GetUint("TRADE_FEE_BPS")),
			RelistFeeBps:      uint16(viper.GetUint("RELIST_FEE_BPS")),
			MultisigAdmins:    getSlice("MULTISIG_ADMINS", ","),
			MultisigThreshold: uint8(viper.GetUint("MULTISIG_THRESHOLD")),
			TreasuryMints:     getSlice("TREASURY_MINTS", ","),
			EnforceThreshold:  viper.GetBool("MULTISIG_ENFORCE_THRESHOLD"),
		},
		Aws: AwsConfig{
			AccessKey: viper.GetString("AWS_ACCESS_KEY_ID"),
			SecretKey: viper.GetString("AWS_SECRET_KEY_ID"),
			Token:     viper.GetString("AWS_TOKEN"),
			Region:    viper.GetString("AWS_REGION"),
		},
		ElasticSearch: ElasticSearchConfig{
			Enabled:          viper.GetBool("ELASTIC_SEARCH_ENABLED"),
			Hosts:            getSlice("ELASTIC_SEARCH_HOSTS", ","),
			Sniff:            viper.GetBool("ELASTIC_SEARCH_SNIFF"),
			HealthCheck:      viper.GetBool("ELASTIC_SEARCH_HEALTH_CHECK"),
			Debug:            viper.GetBool("ELASTIC_SEARCH_DEBUG"),
			Aws:              viper.GetBool("ELASTIC_SEARCH_AWS"),
			Username:         viper.GetString("ELASTIC_SEARCH_USERNAME"),
			Password:         viper.GetString("ELASTIC_SEARCH_PASSWORD"),
			MappingDir:       viper.GetString("ELASTIC_SEARCH_MAPPING_DIR"),
			BulkPersistCount: viper.GetInt("ELASTIC_SEARCH_BULK_PERSIST_COUNT"),
			Refresh:          viper.GetString("ELASTIC_SEARCH_REFRESH"),
		},
		Messenger: MessengerConfig{
			Driver:      strings.ToLower(viper.GetString("MESSENGER_DRIVER")),
			AmqpUri:     viper.GetString("AMQP_URI"),
			SqsQueueUrl: viper.GetString("SQS_QUEUE_URL"),
		},
		Client: ClientConfig{
			ApiUrl:   viper.GetString("API_URL"),
			Timeout:  viper.GetInt("API_TIMEOUT"),
			Retries:  viper.GetInt("API_RETRIES"),
			Keypairs: getSlice("API_KEYPAIRS", ","),
		},
		Exchange: ExchangeConfig{
			FixedQuoteProgram: viper.GetString("FIXED_QUOTE_PROGRAM"),
			FixedQuotePool:    viper.GetString("FIXED_QUOTE_POOL"),
			ProgramsFile:      viper.GetString("EXCHANGE_PROGRAMS_FILE"),
		},
		Snapshot: SnapshotConfig{
			Driver:   strings.ToLower(viper.GetString("LEDGER_STORE")),
			Dsn:      viper.GetString("LEDGER_STORE_DSN"),
			Key:      viper.GetString("LEDGER_SNAPSHOT_KEY"),
			Interval: viper.GetInt("LEDGER_SNAPSHOT_INTERVAL"),
		},
	}
}

func getSlice(key string, sep string) []string {
	valStr := viper.GetString(key)
	if valStr == "" {
		return []string{}
	}

	values := make([]string, 0)
	for _, v := range strings.Split(valStr, sep) {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}

	return values
}
