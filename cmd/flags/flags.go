// Package flags holds the CLI flags and wiring helpers shared by the
// binaries in cmd/.
package flags

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/ruteri/content-attestation-engine/common"
	"github.com/ruteri/content-attestation-engine/cryptoutils"
	"github.com/ruteri/content-attestation-engine/engine"
	"github.com/ruteri/content-attestation-engine/httpserver"
	"github.com/ruteri/content-attestation-engine/interfaces"
	"github.com/ruteri/content-attestation-engine/ledger"
	"github.com/ruteri/content-attestation-engine/oracle"
	"github.com/ruteri/content-attestation-engine/storage"
	"github.com/ruteri/content-attestation-engine/verifier"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	return setupLogger(cCtx, nil)
}

// SetupCLILogger routes log records to stderr so one-shot commands can
// print their result on stdout.
func SetupCLILogger(cCtx *cli.Context) (log *slog.Logger) {
	return setupLogger(cCtx, os.Stderr)
}

func setupLogger(cCtx *cli.Context, out io.Writer) *slog.Logger {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String(LogServiceFlag.Name)

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
		Out:     out,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger, listenAddr string) *httpserver.HTTPServerConfig {
	metricsAddr := cCtx.String(MetricsAddrFlag.Name)
	enablePprof := cCtx.Bool(PprofFlag.Name)
	drainDuration := time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second

	return &httpserver.HTTPServerConfig{
		ListenAddr:               listenAddr,
		MetricsAddr:              metricsAddr,
		Log:                      logger,
		EnablePprof:              enablePprof,
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

// ParseChains reads the repeatable --ledger flags into chain configurations.
func ParseChains(cCtx *cli.Context) ([]ledger.ChainConfig, error) {
	raw := cCtx.StringSlice(LedgerFlag.Name)
	configs := make([]ledger.ChainConfig, 0, len(raw))
	for _, spec := range raw {
		cfg, err := ledger.ParseChainFlag(spec)
		if err != nil {
			return nil, fmt.Errorf("invalid --%s %q: %w", LedgerFlag.Name, spec, err)
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

// ParseSigners reads the repeatable --oracle-signer flags into an authorized
// signer set.
func ParseSigners(cCtx *cli.Context) ([]ethcommon.Address, error) {
	raw := cCtx.StringSlice(OracleSignerFlag.Name)
	signers := make([]ethcommon.Address, 0, len(raw))
	for _, hexAddr := range raw {
		if !ethcommon.IsHexAddress(hexAddr) {
			return nil, fmt.Errorf("invalid --%s %q: not a hex address", OracleSignerFlag.Name, hexAddr)
		}
		signers = append(signers, ethcommon.HexToAddress(hexAddr))
	}
	return signers, nil
}

// CreateContentSource builds the ordered mirror list from the repeatable
// --storage-backend flags.
func CreateContentSource(cCtx *cli.Context, log *slog.Logger) (interfaces.ContentSource, error) {
	raw := cCtx.StringSlice(StorageBackendFlag.Name)
	if len(raw) == 0 {
		return nil, fmt.Errorf("at least one --%s is required", StorageBackendFlag.Name)
	}

	locations := make([]interfaces.StorageBackendLocation, 0, len(raw))
	for _, uri := range raw {
		location, err := interfaces.NewStorageBackendLocation(uri)
		if err != nil {
			return nil, fmt.Errorf("invalid --%s %q: %w", StorageBackendFlag.Name, uri, err)
		}
		locations = append(locations, location)
	}

	return storage.NewFactory(log).CreateMultiSource(locations)
}

// CreateLedgerFactory builds the chain dialer from the --ledger flags. SRV
// endpoints resolve through the system resolver.
func CreateLedgerFactory(cCtx *cli.Context, log *slog.Logger) (*ledger.Factory, error) {
	chains, err := ParseChains(cCtx)
	if err != nil {
		return nil, err
	}
	if len(chains) == 0 {
		return nil, fmt.Errorf("at least one --%s is required", LedgerFlag.Name)
	}

	return ledger.NewFactory(chains, log).WithResolver(ledger.NewResolver("")), nil
}

// CreateVerifier builds a verifier over the configured chains and signer
// set.
func CreateVerifier(cCtx *cli.Context, factory *ledger.Factory, log *slog.Logger) (*verifier.Verifier, error) {
	signers, err := ParseSigners(cCtx)
	if err != nil {
		return nil, err
	}

	return verifier.New(factory, verifier.Options{
		RequiredDepth:     cCtx.Uint64(RequiredDepthFlag.Name),
		ChainDepths:       factory.Depths(),
		AuthorizedSigners: signers,
	}, log), nil
}

// CreateOracleClient builds the oracle client from --oracle-url. An empty
// URL selects the built-in dev stub, whose signing address is added to the
// authorized set automatically. The effective signer set is returned for
// wiring into the verifier.
func CreateOracleClient(cCtx *cli.Context, chains []string, log *slog.Logger) (*oracle.Client, []ethcommon.Address, error) {
	signers, err := ParseSigners(cCtx)
	if err != nil {
		return nil, nil, err
	}

	var service interfaces.OracleService
	if url := cCtx.String(OracleURLFlag.Name); url != "" {
		if len(signers) == 0 {
			return nil, nil, fmt.Errorf("at least one --%s is required with a real oracle", OracleSignerFlag.Name)
		}
		service = oracle.NewHTTPService(url)
	} else {
		key, err := cryptoutils.DeriveSigningKey(cCtx.String(DevOracleSeedFlag.Name))
		if err != nil {
			return nil, nil, err
		}

		stub := oracle.NewStub(key)
		for _, chainID := range chains {
			stub.Anchors = append(stub.Anchors, interfaces.ChainAnchor{
				ChainID:        chainID,
				TransactionRef: "0x" + interfaces.ComputeDigest([]byte("dev-anchor-"+chainID)).String(),
			})
		}
		signers = append(signers, stub.Address())
		log.Warn("Using built-in stub oracle, anchors are synthetic", "signer", stub.Address().Hex())
		service = stub
	}

	client := oracle.NewClient(service, oracle.ClientConfig{
		AuthorizedSigners: signers,
		Log:               log,
	})
	return client, signers, nil
}

// CreateEngine assembles the full attestation pipeline from the CLI flags.
func CreateEngine(cCtx *cli.Context, log *slog.Logger) (*engine.Engine, error) {
	source, err := CreateContentSource(cCtx, log)
	if err != nil {
		return nil, err
	}

	factory, err := CreateLedgerFactory(cCtx, log)
	if err != nil {
		return nil, err
	}

	oracleClient, signers, err := CreateOracleClient(cCtx, factory.Chains(), log)
	if err != nil {
		return nil, err
	}

	tracker := ledger.NewTracker(factory, ledger.Policy{
		RequiredDepth: cCtx.Uint64(RequiredDepthFlag.Name),
		ChainDepths:   factory.Depths(),
		Quorum:        cCtx.Int(QuorumFlag.Name),
	}, log)

	proofs, err := storage.NewFileProofStore(cCtx.String(ProofDirFlag.Name), log)
	if err != nil {
		return nil, err
	}

	return engine.New(engine.Config{
		Source:  source,
		Oracle:  oracleClient,
		Tracker: tracker,
		Proofs:  proofs,
		Verifier: verifier.New(factory, verifier.Options{
			RequiredDepth:     cCtx.Uint64(RequiredDepthFlag.Name),
			ChainDepths:       factory.Depths(),
			AuthorizedSigners: signers,
		}, log),
		Log: log,
	})
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: common.PackageName,
	Usage: "add 'service' tag to logs",
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Value: "127.0.0.1:8090",
	Usage: "address to listen on for Prometheus metrics",
}

var StorageBackendFlag = &cli.StringSliceFlag{
	Name:  "storage-backend",
	Usage: "content source URI, repeatable; order defines the mirror preference. Schemes: file://, ipfs://, s3://, vault://, http(s)://",
}
var ProofDirFlag = &cli.StringFlag{
	Name:  "proof-dir",
	Value: "proofs",
	Usage: "directory proof artifacts are stored in",
}
var LedgerFlag = &cli.StringSliceFlag{
	Name:  "ledger",
	Usage: "ledger to anchor on, repeatable: chainID=<id>,rpc=<url>[,depth=<blocks>]. rpc may be srv://<service> for DNS SRV discovery",
}
var QuorumFlag = &cli.IntFlag{
	Name:  "quorum",
	Value: 0,
	Usage: "chains that must confirm before the aggregate does (0 = majority)",
}
var RequiredDepthFlag = &cli.Uint64Flag{
	Name:  "required-depth",
	Value: ledger.DefaultRequiredDepth,
	Usage: "confirmation depth for chains without a per-ledger override",
}
var OracleURLFlag = &cli.StringFlag{
	Name:  "oracle-url",
	Value: "",
	Usage: "attestation oracle base URL (empty selects the built-in dev stub)",
}
var OracleSignerFlag = &cli.StringSliceFlag{
	Name:  "oracle-signer",
	Usage: "authorized oracle signing address, repeatable hex",
}
var DevOracleSeedFlag = &cli.StringFlag{
	Name:  "dev-oracle-seed",
	Value: "attestation-dev-oracle",
	Usage: "passphrase the dev stub oracle derives its signing key from",
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}

// LogFlags is the logging subset of CommonFlags, for one-shot commands
// that have no metrics or drain endpoints.
var LogFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogServiceFlag,
}

// AttestationFlags configure the attestation pipeline itself and are shared
// by the server and the one-shot CLIs.
var AttestationFlags = []cli.Flag{
	StorageBackendFlag,
	ProofDirFlag,
	LedgerFlag,
	QuorumFlag,
	RequiredDepthFlag,
	OracleURLFlag,
	OracleSignerFlag,
	DevOracleSeedFlag,
}
