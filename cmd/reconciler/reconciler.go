/*
Copyright 2024.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package reconciler

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/overture-stack/dac-permissions-reconciler/internal/config"
	"github.com/overture-stack/dac-permissions-reconciler/internal/log"
	"github.com/overture-stack/dac-permissions-reconciler/internal/metrics"
	"github.com/overture-stack/dac-permissions-reconciler/pkg/approved"
	"github.com/overture-stack/dac-permissions-reconciler/pkg/dacclient"
	"github.com/overture-stack/dac-permissions-reconciler/pkg/dactoken"
	"github.com/overture-stack/dac-permissions-reconciler/pkg/ids"
	"github.com/overture-stack/dac-permissions-reconciler/pkg/reconcile"
)

// NewCommand builds the "reconcile" subcommand: a single run of the
// create-then-revoke permission engine against one DAC.
func NewCommand() *cobra.Command {
	command := cobra.Command{
		Use:               "reconcile",
		Short:             "Run a single DAC permissions reconciliation pass",
		Long:              "Fetches the datasets for a DAC, resolves the locally approved users against the platform, creates missing permissions and revokes stale ones, then prints the resulting job report.",
		DisableAutoGenTag: true,
		RunE:              run,
	}
	return &command
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewConfiguration()
	if err != nil {
		return fmt.Errorf("error retrieving configurations: %w", err)
	}

	logger, err := log.New(log.WithLevel(log.LogLevel(cfg.LogLevel())), log.WithFormat(log.LogFormat(cfg.LogFormat())))
	if err != nil {
		return fmt.Errorf("error creating logger: %w", err)
	}
	logger.Info("starting reconciliation run", "config", cfg)

	verificationKey, err := loadRSAPublicKey(cfg.TokenVerificationPublicKey())
	if err != nil {
		return fmt.Errorf("error loading token verification key: %w", err)
	}

	tokens := dactoken.NewManager(dactoken.Config{
		AuthBaseURL:     cfg.AuthBaseURL(),
		RealmName:       cfg.AuthRealmName(),
		ClientID:        cfg.ClientID(),
		Username:        cfg.IdentityUsername(),
		Password:        cfg.IdentityPassword(),
		VerificationKey: verificationKey,
	}, logger.With("component", "token-manager"))

	client := dacclient.New(dacclient.Config{
		BaseURL:            cfg.APIBaseURL(),
		MaxRequestLimit:    cfg.MaxRequestLimit(),
		MaxRequestInterval: cfg.MaxRequestInterval(),
	}, tokens, logger.With("component", "api-client"))

	store, err := approved.NewPostgresStore(cfg.StoreDSN())
	if err != nil {
		return fmt.Errorf("error opening approved-applications store: %w", err)
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		logger.Info("serving metrics", "address", cfg.MetricsAddress())
		if err := http.ListenAndServe(cfg.MetricsAddress(), mux); err != nil && err != http.ErrServerClosed {
			logger.Error(err, "metrics server error")
		}
	}()

	dacID, err := ids.ParseDacId(cfg.DacID())
	if err != nil {
		return fmt.Errorf("error parsing configured DAC id: %w", err)
	}

	engine := reconcile.New(reconcile.Config{
		DacID:             dacID,
		DefaultPageLimit:  cfg.DefaultPageLimit(),
		DefaultPageOffset: cfg.DefaultPageOffset(),
		MaxBatchSize:      cfg.MaxBatchSize(),
	}, client, store, logger.With("component", "reconciler"))

	report := engine.RunReconciliation(context.Background())

	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding job report: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(encoded))

	if !report.Success {
		return fmt.Errorf("reconciliation run did not complete successfully: %s", report.Error)
	}
	return nil
}

func loadRSAPublicKey(path string) (*rsa.PublicKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read public key file %q: %w", path, err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in %q", path)
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("could not parse public key in %q: %w", path, err)
	}
	rsaKey, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key in %q is not RSA", path)
	}
	return rsaKey, nil
}
