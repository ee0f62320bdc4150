package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/spf13/viper"
)

const (
	// DatadirKey is the local data directory to store the internal state of
	// the daemon
	DatadirKey = "DATADIR"
	// LogLevelKey are the different logging levels. For reference on the
	// values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// ListeningPortKey is the port where the HTTP interface will listen on
	ListeningPortKey = "LISTENING_PORT"
	// ProjectIDKey, ClientKeyKey and AppIDKey identify the project on the
	// account-abstraction backend
	ProjectIDKey = "PROJECT_ID"
	ClientKeyKey = "CLIENT_KEY"
	AppIDKey     = "APP_ID"
	// RPCURLKey overrides the domain of the chain and AA JSON-RPC endpoints
	RPCURLKey = "RPC_URL"
	// EnvironmentKey is either production or development. The latter switches
	// to the debug RPC domain
	EnvironmentKey = "ENVIRONMENT"
	// AccountContractsFileKey is the path of the YAML account contracts
	// mapping, the built-in one is used if not set
	AccountContractsFileKey = "ACCOUNT_CONTRACTS_FILE"
	// ChainsFileKey is the path of the YAML chain registry, the built-in one
	// is used if not set
	ChainsFileKey = "CHAINS_FILE"
	// AutoConnectKey reactivates the last used connector at startup
	AutoConnectKey = "AUTO_CONNECT"
	// DBTypeKey is used to switch database type between those supported
	DBTypeKey = "DB_TYPE"
	// RPCRequestsPerSecondKey throttles the requests to the AA backend
	RPCRequestsPerSecondKey = "RPC_REQUESTS_PER_SECOND"
	// RPCTimeoutKey is the timeout in seconds of outbound JSON-RPC calls
	RPCTimeoutKey = "RPC_TIMEOUT"
	// BridgeTimeoutKey is the time in seconds a wallet request waits for the
	// user
	BridgeTimeoutKey = "BRIDGE_TIMEOUT"
	// WebhookTimeoutKey is the timeout in seconds of webhook invocations
	WebhookTimeoutKey = "WEBHOOK_TIMEOUT"
	// PairedNetworkKey is the network of the paired wallet, Mainnet or Testnet
	PairedNetworkKey = "PAIRED_NETWORK"
	// EnableProfilerKey enables profiler that can be used to investigate
	// performance issues
	EnableProfilerKey = "ENABLE_PROFILER"
	// StatsIntervalKey defines interval in seconds for printing basic stats
	StatsIntervalKey = "STATS_INTERVAL"

	DbLocation       = "db"
	ProfilerLocation = "stats"

	DBBadger   = "badger"
	DBInMemory = "inmemory"

	EnvironmentProduction  = "production"
	EnvironmentDevelopment = "development"
)

var (
	vip            *viper.Viper
	defaultDatadir = btcutil.AppDataDir("connectkit", false)

	supportedDBTypes = map[string]bool{
		DBBadger:   true,
		DBInMemory: true,
	}
	supportedEnvironments = map[string]bool{
		EnvironmentProduction:  true,
		EnvironmentDevelopment: true,
	}
	supportedPairedNetworks = map[string]bool{
		"Mainnet": true,
		"Testnet": true,
	}
)

func InitConfig() error {
	vip = viper.New()
	vip.SetEnvPrefix("CONNECTKIT")
	vip.AutomaticEnv()

	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(ListeningPortKey, 9545)
	vip.SetDefault(EnvironmentKey, EnvironmentProduction)
	vip.SetDefault(AutoConnectKey, true)
	vip.SetDefault(DBTypeKey, DBBadger)
	vip.SetDefault(RPCRequestsPerSecondKey, 10)
	vip.SetDefault(RPCTimeoutKey, 30)
	vip.SetDefault(BridgeTimeoutKey, 300)
	vip.SetDefault(WebhookTimeoutKey, 15)
	vip.SetDefault(PairedNetworkKey, "Mainnet")
	vip.SetDefault(EnableProfilerKey, false)
	vip.SetDefault(StatsIntervalKey, 600)

	if err := validate(); err != nil {
		return fmt.Errorf("error while validating config: %s", err)
	}

	if err := initDatadir(); err != nil {
		return fmt.Errorf("error while creating datadir: %s", err)
	}

	return nil
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

// GetSeconds reads an integer key as a number of seconds.
func GetSeconds(key string) time.Duration {
	return time.Duration(vip.GetInt(key)) * time.Second
}

func GetDatadir() string {
	return GetString(DatadirKey)
}

func GetDbDir() string {
	return filepath.Join(GetDatadir(), DbLocation)
}

func GetListeningAddress() string {
	return fmt.Sprintf(":%d", GetInt(ListeningPortKey))
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("missing datadir")
	}

	if GetString(ProjectIDKey) == "" {
		return fmt.Errorf("missing project id")
	}
	if GetString(ClientKeyKey) == "" {
		return fmt.Errorf("missing client key")
	}

	if dbType := GetString(DBTypeKey); !supportedDBTypes[dbType] {
		return fmt.Errorf("unsupported db type %s", dbType)
	}
	if env := GetString(EnvironmentKey); !supportedEnvironments[env] {
		return fmt.Errorf(
			"environment must be either '%s' or '%s'",
			EnvironmentProduction, EnvironmentDevelopment,
		)
	}
	if network := GetString(PairedNetworkKey); !supportedPairedNetworks[network] {
		return fmt.Errorf("paired network must be either 'Mainnet' or 'Testnet'")
	}

	if GetInt(RPCRequestsPerSecondKey) <= 0 {
		return fmt.Errorf("%s must be a positive number", RPCRequestsPerSecondKey)
	}
	if GetInt(RPCTimeoutKey) <= 0 {
		return fmt.Errorf("%s must be a positive number", RPCTimeoutKey)
	}

	for _, key := range []string{AccountContractsFileKey, ChainsFileKey} {
		path := GetString(key)
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("invalid %s: %s", key, err)
		}
	}
	return nil
}

func initDatadir() error {
	datadir := GetDatadir()
	if GetString(DBTypeKey) == DBBadger {
		if err := makeDirectoryIfNotExists(filepath.Join(datadir, DbLocation)); err != nil {
			return err
		}
	}

	profilerEnabled := GetBool(EnableProfilerKey)
	if profilerEnabled {
		if err := makeDirectoryIfNotExists(filepath.Join(datadir, ProfilerLocation)); err != nil {
			return err
		}
	}
	return nil
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}
