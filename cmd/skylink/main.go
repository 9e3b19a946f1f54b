package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/curbz/skylink/internal/airports"
	"github.com/curbz/skylink/internal/api"
	"github.com/curbz/skylink/internal/mockserver"
	"github.com/curbz/skylink/internal/model"
	"github.com/curbz/skylink/internal/roster"
	"github.com/curbz/skylink/internal/session"
	"github.com/curbz/skylink/internal/xplane/xpconnect"
	"github.com/curbz/skylink/pkg/util"
)

type appConfig struct {
	Server struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"server"`
	Company struct {
		Name            string  `yaml:"name"`
		Hub             string  `yaml:"hub"`
		Callsign        string  `yaml:"callsign"`
		StartingBalance float64 `yaml:"starting_balance"`
	} `yaml:"company"`
	Airports struct {
		DataFile string `yaml:"data_file"`
	} `yaml:"airports"`
	Mock struct {
		Enabled bool   `yaml:"enabled"`
		Port    string `yaml:"port"`
	} `yaml:"mock"`
	Fleet []fleetEntry `yaml:"fleet"`
}

type fleetEntry struct {
	Model        string                `yaml:"model"`
	ICAOType     string                `yaml:"icao_type"`
	Registration string                `yaml:"registration"`
	Location     string                `yaml:"location"`
	Category     model.LicenseCategory `yaml:"category"`
	MaxPax       int                   `yaml:"max_pax"`
}

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := util.LoadConfig[appConfig](*cfgPath)
	if err != nil {
		logrus.Fatalf("Error reading configuration file: %v", err)
	}

	db, err := airports.Load(cfg.Airports.DataFile)
	if err != nil {
		logrus.Fatalf("Error loading airport data: %v", err)
	}

	fleet := make([]model.Aircraft, 0, len(cfg.Fleet))
	for _, f := range cfg.Fleet {
		loc := f.Location
		if loc == "" {
			loc = cfg.Company.Hub
		}
		fleet = append(fleet, model.Aircraft{
			ID:           uuid.NewString(),
			Model:        f.Model,
			ICAOType:     f.ICAOType,
			Registration: f.Registration,
			Category:     f.Category,
			Location:     loc,
			Condition:    100,
			MaxPax:       f.MaxPax,
			Status:       model.AircraftActive,
		})
	}

	svc := session.New(session.Config{
		Company: model.CompanyConfig{
			Name:    cfg.Company.Name,
			Hub:     cfg.Company.Hub,
			Balance: cfg.Company.StartingBalance,
		},
		Fleet:    fleet,
		Airports: db,
		Roster:   roster.New(db, cfg.Company.Callsign),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Mock.Enabled {
		mockSrv := mockserver.Start(cfg.Mock.Port)
		defer mockSrv.Shutdown(context.Background())
	}

	go runConnector(ctx, *cfgPath, svc)

	httpSrv := &http.Server{Addr: cfg.Server.ListenAddr, Handler: api.New(svc)}
	go func() {
		logrus.WithField("addr", cfg.Server.ListenAddr).Info("HTTP API listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logrus.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown incomplete")
	}
}

// runConnector keeps the simulator link alive, reconnecting with a fixed
// backoff. The simulator being offline is normal at startup; the session
// simply sees no samples until it comes up.
func runConnector(ctx context.Context, cfgPath string, sink xpconnect.TelemetrySink) {
	for {
		xpc, err := xpconnect.New(cfgPath, sink)
		if err != nil {
			logrus.Fatalf("Error configuring simulator connector: %v", err)
		}
		if err := xpc.Run(ctx); err != nil {
			logrus.WithError(err).Warn("simulator link lost, retrying")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Second):
		}
	}
}
