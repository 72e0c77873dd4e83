package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driving"
	"github.com/custodia-labs/syncbridge/internal/logger"
)

// Initialize registers the configured servers concurrently, then the
// configured integrations, and logs a status summary. Handshake failures
// are logged and leave the server registered with status error; only
// registration errors are returned. Integrations left in a persistent
// store by an earlier configuration are removed.
func Initialize(ctx context.Context, fw driving.Framework, cfg *domain.Config) error {
	logger.Section("Initialising framework")

	var (
		mu     sync.Mutex
		result *multierror.Error
		wg     sync.WaitGroup
	)
	for _, server := range cfg.Servers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fw.RegisterServer(ctx, server)
			var hs *domain.HandshakeError
			switch {
			case err == nil:
			case errors.As(err, &hs):
				logger.Warn("Server %s registered but not connected: %v", server.ID, err)
			default:
				mu.Lock()
				result = multierror.Append(result, fmt.Errorf("register server %s: %w", server.ID, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	configured := make(map[string]bool, len(cfg.Integrations))
	for _, integration := range cfg.Integrations {
		configured[integration.ID] = integration.ID != ""
		registered, err := fw.RegisterIntegration(ctx, integration)
		if registered != nil {
			configured[registered.ID] = true
		}
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("register integration %s: %w", integration.ID, err))
		}
	}
	if err := removeUnconfigured(ctx, fw, configured); err != nil {
		result = multierror.Append(result, err)
	}

	LogStatus(ctx, fw)
	return result.ErrorOrNil()
}

// Reconcile applies a reloaded configuration: new servers are registered,
// integrations are registered or updated and integrations missing from
// cfg are removed. Servers missing from cfg are left in place.
func Reconcile(ctx context.Context, fw driving.Framework, cfg *domain.Config) error {
	var result *multierror.Error

	for _, server := range cfg.Servers {
		if _, err := fw.Server(ctx, server.ID); err == nil {
			continue
		}
		if _, err := fw.RegisterServer(ctx, server); err != nil {
			var hs *domain.HandshakeError
			if !errors.As(err, &hs) {
				result = multierror.Append(result, fmt.Errorf("register server %s: %w", server.ID, err))
			}
		}
	}

	configured := make(map[string]bool, len(cfg.Integrations))
	for _, integration := range cfg.Integrations {
		configured[integration.ID] = integration.ID != ""
		var (
			applied *domain.Integration
			err     error
		)
		if _, getErr := fw.Integration(ctx, integration.ID); getErr == nil {
			applied, err = fw.UpdateIntegration(ctx, integration)
		} else {
			applied, err = fw.RegisterIntegration(ctx, integration)
		}
		if applied != nil {
			configured[applied.ID] = true
		}
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("apply integration %s: %w", integration.ID, err))
		}
	}
	if err := removeUnconfigured(ctx, fw, configured); err != nil {
		result = multierror.Append(result, err)
	}

	logger.Info("Configuration reloaded: %d servers, %d integrations", len(cfg.Servers), len(cfg.Integrations))
	return result.ErrorOrNil()
}

// removeUnconfigured unregisters every integration whose ID is not in keep.
func removeUnconfigured(ctx context.Context, fw driving.Framework, keep map[string]bool) error {
	integrations, err := fw.Integrations(ctx)
	if err != nil {
		return fmt.Errorf("list integrations: %w", err)
	}
	var result *multierror.Error
	for _, integration := range integrations {
		if keep[integration.ID] {
			continue
		}
		if err := fw.UnregisterIntegration(ctx, integration.ID); err != nil {
			result = multierror.Append(result, fmt.Errorf("remove integration %s: %w", integration.ID, err))
			continue
		}
		logger.Info("Removed integration %s: no longer configured", integration.ID)
	}
	return result.ErrorOrNil()
}

// LogStatus logs a summary of servers and integrations.
func LogStatus(ctx context.Context, fw driving.Framework) {
	status, err := fw.Status(ctx)
	if err != nil {
		logger.Warn("Failed to read framework status: %v", err)
		return
	}
	logger.WithFields(logger.Fields{
		"servers":          status.Servers.Total,
		"connected":        status.Servers.Connected,
		"integrations":     status.Integrations.Total,
		"auto_sync":        status.Integrations.AutoSync,
		"framework_status": status.Status,
	}).Info("Framework status")

	servers, err := fw.Servers(ctx)
	if err != nil {
		return
	}
	for _, server := range servers {
		logger.Info("  %s: %s", server.Name, server.Status())
	}
}
