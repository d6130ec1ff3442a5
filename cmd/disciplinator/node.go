package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/disciplinator/disciplinator/internal/crypto"
	"github.com/disciplinator/disciplinator/internal/events"
	"github.com/disciplinator/disciplinator/internal/ledger"
	"github.com/disciplinator/disciplinator/internal/protocol"
	"github.com/disciplinator/disciplinator/internal/store"
	"github.com/disciplinator/disciplinator/pkg/db/pebble"
	"github.com/disciplinator/disciplinator/pkg/log"
)

// node is the protocol wired to on-disk state for the duration of a command.
type node struct {
	kv       *pebble.KVStore
	store    *store.Store
	ledger   *ledger.KV
	audit    *events.SQLiteSink
	registry *prometheus.Registry
	svc      *protocol.Service
	asset    crypto.Identity
	textfile string
}

// assetID derives the ledger id of a named asset.
func assetID(name string) crypto.Identity {
	return crypto.DeriveIdentity([]byte("asset"), []byte(name))
}

func (a *app) open(ctx context.Context) (*node, error) {
	if err := a.cfg.EnsureDirs(); err != nil {
		return nil, err
	}
	kv, err := pebble.Open(a.cfg.StorePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	n := &node{kv: kv, asset: assetID(a.cfg.Protocol.Asset)}

	if n.store, err = store.New(kv); err != nil {
		n.Close()
		return nil, err
	}
	if n.ledger, err = ledger.NewKV(kv); err != nil {
		n.Close()
		return nil, err
	}
	err = n.ledger.RegisterAsset(ctx, ledger.Asset{ID: n.asset, Decimals: a.cfg.Protocol.AssetDecimals})
	if err != nil && !errors.Is(err, ledger.ErrAssetExists) {
		n.Close()
		return nil, err
	}

	sinks := []events.Sink{events.NewLogSink(log.Events)}
	if n.audit, err = events.OpenSQLite(a.cfg.Audit.SQLitePath); err != nil {
		n.Close()
		return nil, err
	}
	sinks = append(sinks, n.audit)
	if a.cfg.Metrics.Enabled {
		n.registry = prometheus.NewRegistry()
		metrics, err := events.NewMetricsSink(n.registry)
		if err != nil {
			n.Close()
			return nil, err
		}
		sinks = append(sinks, metrics)
		n.textfile = a.cfg.Metrics.Textfile
	}

	n.svc = protocol.New(n.store, n.ledger, a.clock(), events.NewFanout(sinks...))
	return n, nil
}

// Close flushes the metrics textfile and releases the stores.
func (n *node) Close() error {
	var errs []error
	if n.registry != nil {
		if err := prometheus.WriteToTextfile(n.textfile, n.registry); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if n.audit != nil {
		errs = append(errs, n.audit.Close())
	}
	if n.store != nil {
		errs = append(errs, n.store.Close())
	}
	errs = append(errs, n.kv.Close())
	return errors.Join(errs...)
}

// withNode runs fn against an opened node and closes it afterwards.
func (a *app) withNode(ctx context.Context, fn func(*node) error) (err error) {
	n, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, n.Close())
	}()
	return fn(n)
}
