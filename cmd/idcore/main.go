package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/halcyonlabs/idcore/internal/auth"
	"github.com/halcyonlabs/idcore/internal/cache"
	cachemem "github.com/halcyonlabs/idcore/internal/cache/memory"
	cacheredis "github.com/halcyonlabs/idcore/internal/cache/redis"
	"github.com/halcyonlabs/idcore/internal/config"
	"github.com/halcyonlabs/idcore/internal/domain/repository"
	"github.com/halcyonlabs/idcore/internal/evidence"
	"github.com/halcyonlabs/idcore/internal/http"
	"github.com/halcyonlabs/idcore/internal/identity"
	"github.com/halcyonlabs/idcore/internal/jwt"
	"github.com/halcyonlabs/idcore/internal/ledger"
	"github.com/halcyonlabs/idcore/internal/metrics"
	"github.com/halcyonlabs/idcore/internal/mfa"
	"github.com/halcyonlabs/idcore/internal/notify"
	"github.com/halcyonlabs/idcore/internal/observability/logger"
	"github.com/halcyonlabs/idcore/internal/provision"
	"github.com/halcyonlabs/idcore/internal/rate"
	"github.com/halcyonlabs/idcore/internal/rbac"
	"github.com/halcyonlabs/idcore/internal/security/password"
	"github.com/halcyonlabs/idcore/internal/security/randstr"
	"github.com/halcyonlabs/idcore/internal/session"
	storemem "github.com/halcyonlabs/idcore/internal/store/memory"
	storepg "github.com/halcyonlabs/idcore/internal/store/pg"
	"github.com/halcyonlabs/idcore/internal/util/atomicwrite"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string

	root := &cobra.Command{
		Use:           "idcore",
		Short:         "Servicio de identidad: autenticación, sesiones, MFA y RBAC",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", os.Getenv("IDCORE_CONFIG"), "ruta al YAML de configuración")

	root.AddCommand(serveCmd(&cfgPath))
	root.AddCommand(sweepCmd(&cfgPath))
	root.AddCommand(keygenCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// repos agrupa los repositorios como interfaces, sin importar el driver.
type repos struct {
	identities repository.IdentityRepository
	sessions   repository.SessionRepository
	mfa        repository.MFARepository
	rbac       repository.RBACRepository
	close      func()
}

func buildStore(ctx context.Context, cfg config.Config) (*repos, error) {
	switch cfg.Store.Driver {
	case "", "memory":
		st := storemem.New()
		return &repos{
			identities: st.Identities,
			sessions:   st.Sessions,
			mfa:        st.MFA,
			rbac:       st.RBAC,
			close:      func() {},
		}, nil
	case "postgres":
		st, err := storepg.New(ctx, cfg.Store.PostgresDSN, storepg.Options{})
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := st.Bootstrap(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("bootstrap schema: %w", err)
		}
		return &repos{
			identities: st.Identities,
			sessions:   st.Sessions,
			mfa:        st.MFA,
			rbac:       st.RBAC,
			close:      st.Close,
		}, nil
	default:
		return nil, fmt.Errorf("store driver desconocido: %q", cfg.Store.Driver)
	}
}

func buildCache(cfg config.Config) cache.Cache {
	if cfg.Cache.Driver == "redis" {
		return cacheredis.New(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
	}
	return cachemem.New(10 * time.Minute)
}

func buildLimiter(cfg config.Config, c cache.Cache) rate.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	// Con redis los contadores se comparten entre instancias.
	if rc, ok := c.(*cacheredis.Cache); ok {
		return rate.NewRedisLimiter(rc.Client(), "", cfg.RateLimit.Max, cfg.RateLimit.Window)
	}
	return rate.NewMemoryLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window)
}

func buildLedger(cfg config.Config) ledger.Client {
	if cfg.Ledger.URL == "" {
		return ledger.Noop{}
	}
	return ledger.NewHTTPClient(cfg.Ledger.URL, cfg.Ledger.Timeout)
}

func buildProvisioner(cfg config.Config, identities repository.IdentityRepository) *provision.Provisioner {
	if !cfg.Provision.Enabled {
		return nil
	}
	var client provision.AccountClient
	if cfg.Provision.AccountServiceURL != "" {
		client = provision.NewHTTPAccountClient(cfg.Provision.AccountServiceURL, cfg.Provision.APIKey, cfg.Provision.RequestTimeout)
	} else {
		client = provision.LocalAccountClient{}
	}
	return provision.NewProvisioner(provision.Deps{
		Identities: identities,
		Client:     client,
		Breaker:    provision.NewBreaker(cfg.Provision.BreakerThreshold, cfg.Provision.BreakerCooldown),
		Options: provision.Options{
			Currency:          cfg.Provision.Currency,
			MaxAttempts:       cfg.Provision.MaxAttempts,
			InitialDelay:      cfg.Provision.InitialDelay,
			MaxDelay:          cfg.Provision.MaxDelay,
			BackoffMultiplier: cfg.Provision.BackoffMultiplier,
			Jitter:            cfg.Provision.Jitter,
		},
	})
}

func buildEvidenceSigner(cfg config.Config) (*evidence.Signer, error) {
	if cfg.Evidence.PrivateKeyFile != "" {
		priv, err := evidence.LoadPrivateKeyPEM(cfg.Evidence.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load evidence key: %w", err)
		}
		return evidence.NewSigner(cfg.Evidence.Issuer, cfg.Evidence.KeyID, priv)
	}
	// Sin archivo: clave efímera. Los tokens emitidos no sobreviven un
	// reinicio del proceso.
	priv, err := evidence.GenerateKey()
	if err != nil {
		return nil, err
	}
	logger.L().Warn("evidence signer con clave efímera; configurar evidence.private_key_file en producción")
	return evidence.NewSigner(cfg.Evidence.Issuer, cfg.Evidence.KeyID, priv)
}

func serveCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			logger.Init(logger.Config{Env: cfg.Log.Env, Level: cfg.Log.Level})
			defer logger.Sync()
			log := logger.L()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := buildStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.close()

			issuer, err := jwt.NewIssuer(cfg.Auth.Issuer, cfg.Auth.AccessTTL)
			if err != nil {
				return fmt.Errorf("init issuer: %w", err)
			}
			signer, err := buildEvidenceSigner(cfg)
			if err != nil {
				return err
			}

			led := buildLedger(cfg)
			provisioner := buildProvisioner(cfg, st.identities)
			policy := password.ForScheme(cfg.Auth.PasswordScheme)

			sessions := session.NewManager(session.Deps{
				Sessions:     st.sessions,
				RefreshBytes: cfg.Auth.RefreshBytes,
			})
			coordinator := auth.NewCoordinator(auth.Deps{
				Identities: st.identities,
				Sessions:   sessions,
				Issuer:     issuer,
				Ledger:     led,
				Password:   policy,
				Options: auth.Options{
					AccessTTL:          cfg.Auth.AccessTTL,
					DIDTTL:             cfg.Auth.DIDTTL,
					FederatedTTL:       cfg.Auth.FederatedTTL,
					ServiceTTL:         cfg.Auth.ServiceTTL,
					LockoutThreshold:   cfg.Auth.LockoutThreshold,
					LockoutDuration:    cfg.Auth.LockoutDuration,
					BiometricThreshold: cfg.Auth.BiometricThreshold,
				},
			})
			identities := identity.NewService(identity.Deps{
				Identities:         st.identities,
				Password:           policy,
				Ledger:             led,
				Provisioner:        provisioner,
				Evidence:           signer,
				BiometricThreshold: cfg.Auth.BiometricThreshold,
			})
			mfaCache := buildCache(cfg)
			engine := mfa.NewEngine(mfa.Deps{
				Identities: st.identities,
				Configs:    st.mfa,
				Cache:      mfaCache,
				Email:      notify.NewEmailSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.Username, cfg.SMTP.Password),
				SMS:        notify.NewHTTPSMSSender(cfg.SMS.GatewayURL, cfg.SMS.APIKey),
				Random:     randstr.New(),
				Options: mfa.Options{
					Issuer:          cfg.MFA.Issuer,
					ChallengeTTL:    cfg.MFA.ChallengeTTL,
					ChallengeDigits: cfg.MFA.ChallengeDigits,
					BackupCodeCount: cfg.MFA.BackupCodeCount,
					TOTPWindow:      uint(cfg.MFA.TOTPWindow),
				},
			})

			registry := prometheus.NewRegistry()
			if err := metrics.Register(registry); err != nil {
				return fmt.Errorf("register metrics: %w", err)
			}

			handler := http.NewRouter(http.Deps{
				Auth:        coordinator,
				Identity:    identities,
				MFA:         engine,
				Resolver:    rbac.NewResolver(st.rbac),
				RBACAdmin:   rbac.NewAdmin(st.rbac),
				Provisioner: provisioner,
				Limiter:     buildLimiter(cfg, mfaCache),
				Registry:    registry,
			})
			srv := http.NewServer(cfg.Server.Addr, handler)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info("http server listening", logger.String("addr", cfg.Server.Addr))
				return srv.Start()
			})
			g.Go(func() error {
				<-gctx.Done()
				shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				log.Info("shutting down")
				return srv.Shutdown(shutCtx)
			})
			return g.Wait()
		},
	}
}

func sweepCmd(cfgPath *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Reintenta el provisioning de cuentas que quedaron fallidas",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			logger.Init(logger.Config{Env: cfg.Log.Env, Level: cfg.Log.Level})
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := buildStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.close()

			provisioner := buildProvisioner(cfg, st.identities)
			if provisioner == nil {
				return fmt.Errorf("provisioning deshabilitado en la configuración")
			}
			if limit <= 0 {
				limit = cfg.Provision.SweepLimit
			}
			recovered, err := provisioner.SweepFailed(ctx, limit)
			if err != nil {
				return err
			}
			fmt.Printf("recovered=%d\n", recovered)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "máximo de identidades a barrer (default config)")
	return cmd
}

func keygenCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "evidence-keygen",
		Short: "Genera una clave privada EC P-256 para firmar evidencia biométrica",
		RunE: func(cmd *cobra.Command, args []string) error {
			priv, err := evidence.GenerateKey()
			if err != nil {
				return err
			}
			pemBytes, err := evidence.MarshalPrivateKeyPEM(priv)
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err = os.Stdout.Write(pemBytes)
				return err
			}
			if err := atomicwrite.WriteFile(out, pemBytes, 0o600); err != nil {
				return err
			}
			fmt.Printf("written %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "evidence.pem", "archivo de salida PEM ('-' = stdout)")
	return cmd
}
