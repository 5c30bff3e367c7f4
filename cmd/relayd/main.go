package main

import (
	"context"
	"errors"
	"flag"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"swaprelay/config"
	"swaprelay/core/state"
	"swaprelay/crypto"
	"swaprelay/native/amm"
	"swaprelay/native/common"
	"swaprelay/native/custody"
	"swaprelay/native/relay"
	"swaprelay/observability/logging"
	relaydcfg "swaprelay/services/relayd/config"
	"swaprelay/services/relayd/server"
	"swaprelay/services/relayd/storage"
	coredb "swaprelay/storage"
)

func main() {
	var (
		nodeCfgPath    string
		serviceCfgPath string
	)
	flag.StringVar(&nodeCfgPath, "config", "config.toml", "path to the node configuration file")
	flag.StringVar(&serviceCfgPath, "service-config", "services/relayd/config.yaml", "path to the relayd service configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("SWAPRELAY_ENV"))
	logger := logging.Setup("relayd", env)

	nodeCfg, err := config.Load(nodeCfgPath)
	if err != nil {
		logger.Error("load node config", "err", err)
		os.Exit(1)
	}
	svcCfg, err := relaydcfg.Load(serviceCfgPath)
	if err != nil {
		logger.Error("load service config", "err", err)
		os.Exit(1)
	}

	db, err := coredb.NewLevelDB(filepath.Join(nodeCfg.DataDir, "state"))
	if err != nil {
		logger.Error("open state database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)
	pauses := common.NewMemoryPauses()

	adminAddr := config.DecodedAddress(nodeCfg.AdminAddress)
	relayAddr := config.DecodedAddress(nodeCfg.RelayAddress)
	poolAddr := config.DecodedAddress(nodeCfg.Pool.Address)

	engine := amm.NewEngine()
	engine.SetState(manager)
	engine.SetGate(amm.NewStaticGate(adminAddr, relayAddr))
	engine.SetPauses(pauses)
	policy, err := amm.NewBpsFeePolicy(nodeCfg.FeeRateBps)
	if err != nil {
		logger.Error("build fee policy", "err", err)
		os.Exit(1)
	}
	engine.SetFeePolicyUnchecked(policy)

	existing, err := manager.Pool()
	if err != nil {
		logger.Error("load pool", "err", err)
		os.Exit(1)
	}
	if existing == nil {
		pool := amm.NewPool(poolAddr, nodeCfg.Pool.AssetA, nodeCfg.Pool.DecimalsA, nodeCfg.Pool.AssetB, nodeCfg.Pool.DecimalsB)
		if err := engine.InitPool(pool); err != nil {
			logger.Error("initialise pool", "err", err)
			os.Exit(1)
		}
		logger.Info("pool initialised",
			"asset_a", nodeCfg.Pool.AssetA,
			"asset_b", nodeCfg.Pool.AssetB,
		)
	}

	rel, err := relay.NewRelay(relayAddr, poolAddr, big.NewInt(nodeCfg.ChainID))
	if err != nil {
		logger.Error("build relay", "err", err)
		os.Exit(1)
	}
	rel.SetState(manager)
	rel.SetLedger(engine)

	if len(nodeCfg.Custody.Owners) > 0 {
		owners := make([][20]byte, 0, len(nodeCfg.Custody.Owners))
		for _, owner := range nodeCfg.Custody.Owners {
			owners = append(owners, config.DecodedAddress(owner))
		}
		vault, err := custody.NewEngine(config.DecodedAddress(nodeCfg.Custody.Vault), owners, nodeCfg.Custody.Quorum)
		if err != nil {
			logger.Error("build custody vault", "err", err)
			os.Exit(1)
		}
		vault.SetState(manager)
		vaultAddr := vault.Vault()
		logger.Info("custody vault configured",
			"vault", crypto.NewAddress(crypto.SwapPrefix, vaultAddr[:]).String(),
			"owners", len(owners),
			"quorum", vault.Quorum(),
		)
	}

	store, err := storage.Open(svcCfg.DatabasePath)
	if err != nil {
		logger.Error("open audit storage", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	auth := server.NewAuthenticator(server.AuthConfig{
		Enabled:    svcCfg.Admin.Enabled,
		HMACSecret: svcCfg.Admin.HMACSecret,
		Issuer:     svcCfg.Admin.Issuer,
		Audience:   svcCfg.Admin.Audience,
		ClockSkew:  svcCfg.Admin.ClockSkew.Duration,
	}, logger)

	srv, err := server.New(server.Config{
		ListenAddress: svcCfg.ListenAddress,
		AdminAddress:  adminAddr,
	}, rel, engine, pauses, store, auth, logging.Component(logger, "server"))
	if err != nil {
		logger.Error("build server", "err", err)
		os.Exit(1)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("relayd listening",
		"addr", svcCfg.ListenAddress,
		"chain_id", nodeCfg.ChainID,
		"fee_bps", nodeCfg.FeeRateBps,
	)
	if err := srv.Run(rootCtx, svcCfg.ShutdownGrace.Duration); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server exited", "err", err)
		os.Exit(1)
	}
}
