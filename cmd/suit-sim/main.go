/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Command suit-sim simulates one system start of a device running the
// SUIT orchestrator: it optionally provisions demo manifests or stages an
// update, runs the orchestrator, and can keep serving the IPC gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/kentakayama/suit-orchestrator/internal/arbiter"
	"github.com/kentakayama/suit-orchestrator/internal/cachepool"
	"github.com/kentakayama/suit-orchestrator/internal/config"
	"github.com/kentakayama/suit-orchestrator/internal/digestcache"
	"github.com/kentakayama/suit-orchestrator/internal/domain/model"
	"github.com/kentakayama/suit-orchestrator/internal/flash"
	"github.com/kentakayama/suit-orchestrator/internal/ipuc"
	"github.com/kentakayama/suit-orchestrator/internal/mci"
	"github.com/kentakayama/suit-orchestrator/internal/orchestrator"
	"github.com/kentakayama/suit-orchestrator/internal/platform"
	"github.com/kentakayama/suit-orchestrator/internal/provision"
	"github.com/kentakayama/suit-orchestrator/internal/server"
	"github.com/kentakayama/suit-orchestrator/internal/storage"
	"github.com/kentakayama/suit-orchestrator/internal/suit"
	"github.com/kentakayama/suit-orchestrator/internal/util"
	"golang.org/x/sync/errgroup"
)

// simulated memory map
const (
	flashBase = 0x0E000000
	flashSize = 0x200000
	cpuID     = 0x02
)

var (
	vendorID       = uuid.MustParse("7617daa5-71fd-5a85-8f94-e28d735ce9f4")
	nordicTopClass = uuid.MustParse("f03d385e-a731-5605-b15d-037f6da6097f")
	appRootClass   = uuid.MustParse("97c1b0c0-36c6-5a3c-b4e0-1ef1ea3b3e2a")
	appLocalClass  = uuid.MustParse("08c1b599-55e8-5fbc-9e76-7bc29ce1b04d")
	radLocalClass  = uuid.MustParse("6bc2f5e0-bd2b-5a0c-8e3d-94c7d08b0a6f")

	candidateArea = model.MemoryRegion{Address: 0x0E100000, Size: 0x40000}
	cachePoolArea = model.MemoryRegion{Address: 0x0E140000, Size: 0x20000}
	// radio local image, lent to the secure domain as SDFW mirror
	sdfwArea = model.MemoryRegion{Address: 0x0E180000, Size: 0x40000}
	// application local image, updated in place through the gateway
	ipucArea = model.MemoryRegion{Address: 0x0E1C0000, Size: 0x10000}
)

var demoImages = []provision.Image{
	{
		ClassID:  nordicTopClass,
		Role:     mci.RoleNordicTop,
		Address:  0x0E000000,
		Size:     0x10000,
		Payload:  []byte("simulated secure domain firmware"),
		Sequence: 1,
		Version:  []int64{1, 0, 0},
	},
	{
		ClassID:     appRootClass,
		Role:        mci.RoleAppRoot,
		Address:     0x0E040000,
		Size:        0x10000,
		Payload:     []byte("simulated application firmware"),
		Sequence:    1,
		Version:     []int64{1, 0, 0},
		Independent: true,
	},
	{
		ClassID:     appLocalClass,
		Role:        mci.RoleAppLocal1,
		Address:     ipucArea.Address,
		Size:        ipucArea.Size,
		Payload:     []byte("simulated application local firmware"),
		Sequence:    1,
		Version:     []int64{1, 0, 0},
		Independent: true,
	},
	{
		ClassID:  radLocalClass,
		Role:     mci.RoleRadLocal1,
		Address:  sdfwArea.Address,
		Size:     sdfwArea.Size,
		Payload:  []byte("simulated radio local firmware"),
		Sequence: 1,
		Version:  []int64{1, 0, 0},
	},
}

// manifests booted through the application root manifest
var localImages = demoImages[2:]

type options struct {
	dbPath         string
	flashPath      string
	addr           string
	provision      bool
	stageUpdate    bool
	updateReboot   bool
	recoveryReboot bool
	dump           bool
}

// logRebooter stands in for the cold reboot of the real device.
type logRebooter struct {
	logger *log.Logger
}

func (r logRebooter) Reboot(ctx context.Context) error {
	r.logger.Printf("cold reboot requested")
	return nil
}

func main() {
	var opts options
	flag.StringVar(&opts.dbPath, "db", "suit-storage.db", "SUIT storage database")
	flag.StringVar(&opts.flashPath, "flash", "", "flash image file, in memory when empty")
	flag.StringVar(&opts.addr, "addr", "", "serve the IPC gateway on this address after the run")
	flag.BoolVar(&opts.provision, "provision", false, "provision the demo MPI and installed manifests")
	flag.BoolVar(&opts.stageUpdate, "stage-update", false, "stage an update of the application root manifest")
	flag.BoolVar(&opts.updateReboot, "update-reboot", false, "reboot after each install attempt")
	flag.BoolVar(&opts.recoveryReboot, "recovery-reboot", false, "reboot when entering recovery")
	flag.BoolVar(&opts.dump, "dump", false, "print the installed envelopes")
	flag.Parse()

	logger := log.New(os.Stderr, "suit-sim: ", log.LstdFlags)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	code, err := run(ctx, opts, logger)
	if err != nil {
		logger.Printf("%v", err)
		os.Exit(1)
	}
	fmt.Printf("orchestrator result: %d\n", code)
	if code != 0 {
		os.Exit(2)
	}
}

func openDevice(path string) (flash.Device, func(), error) {
	if path == "" {
		return flash.NewMemory(flashBase, flashSize), func() {}, nil
	}
	f, err := flash.OpenFile(path, flashBase, flashSize)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

func run(ctx context.Context, opts options, logger *log.Logger) (int, error) {
	store, err := storage.Open(ctx, config.StorageConfig{DBPath: opts.dbPath})
	if err != nil {
		return 0, err
	}
	defer store.Close()

	if n, err := store.PruneTrustAnchors(ctx); err != nil {
		return 0, err
	} else if n > 0 {
		logger.Printf("%d expired trust anchor(s) removed", n)
	}

	dev, closeDev, err := openDevice(opts.flashPath)
	if err != nil {
		return 0, err
	}
	defer closeDev()

	if opts.provision || opts.stageUpdate {
		if err := prepare(ctx, opts, store, dev); err != nil {
			return 0, err
		}
	}

	cache := digestcache.New()
	registry := newRegistry(dev, cache, logger)
	mciService := mci.NewService(store.MPI(), logger)
	runner := platform.NewRunner(dev, cache, store, vendorID, logger)
	runner.AttachRegistry(registry, mciService)
	processor := suit.NewEnvelopeProcessor(store, runner, logger)
	o := orchestrator.New(config.OrchestratorConfig{
		UpdateReboot:     opts.updateReboot,
		RecoveryReboot:   opts.recoveryReboot,
		NordicTopClassID: nordicTopClass,
		CandidateRegions: []model.MemoryRegion{candidateArea},
		Logger:           logger,
	}, orchestrator.Dependencies{
		Processor: processor,
		MCI:       mciService,
		Storage:   store,
		Pools:     cachepool.NewManager(dev, logger),
		Device:    dev,
		Rebooter:  logRebooter{logger: logger},
	})

	if err := o.Init(ctx); err != nil {
		return orchestrator.Code(err), nil
	}
	result := orchestrator.Code(o.Run(ctx))
	if result == 0 && o.Mode() == orchestrator.ModePostInvoke {
		bootLocal(ctx, processor, store, logger)
	}

	if opts.dump {
		dumpEnvelopes(ctx, store)
	}

	if opts.addr != "" {
		if err := serve(ctx, opts.addr, registry, store, logger); err != nil {
			return result, err
		}
	}
	return result, nil
}

// prepare provisions the demo device and stages an update. Each call
// registers a fresh signing key as an additional trust anchor.
func prepare(ctx context.Context, opts options, store *storage.Storage, dev flash.Device) error {
	signer, kid, err := provision.NewSigner(ctx, store, provision.DefaultKeyValidity)
	if err != nil {
		return err
	}
	p := &provision.Provisioner{
		Storage:  store,
		Device:   dev,
		VendorID: vendorID,
		CPUID:    cpuID,
		Signer:   signer,
		KID:      kid,
	}
	if opts.provision {
		if err := p.Install(ctx, demoImages...); err != nil {
			return fmt.Errorf("provision: %w", err)
		}
	}
	if opts.stageUpdate {
		next := demoImages[1]
		next.Payload = []byte(fmt.Sprintf("simulated application firmware built %s", time.Now().UTC().Format(time.RFC3339)))
		next.Sequence = uint64(time.Now().Unix())
		next.Version = []int64{1, 1, 0}
		if err := p.StageCandidate(ctx, next, candidateArea.Address, cachePoolArea); err != nil {
			return fmt.Errorf("stage update: %w", err)
		}
	}
	return nil
}

func dumpEnvelopes(ctx context.Context, store *storage.Storage) {
	for _, img := range demoImages {
		envelope, err := store.InstalledEnvelope(ctx, img.ClassID)
		if err != nil {
			fmt.Printf("%s: %v\n", img.ClassID, err)
			continue
		}
		rendered, err := util.RenderCBOR(envelope)
		if err != nil {
			fmt.Printf("%s: %v\n", img.ClassID, err)
			continue
		}
		fmt.Printf("%s (%s):\n%s\n", img.ClassID, img.Role, rendered)
	}
}

func newRegistry(dev flash.Device, cache *digestcache.Cache, logger *log.Logger) *ipuc.Registry {
	arb := arbiter.NewTable()
	arb.Grant(arbiter.OwnerApplication, arbiter.PermRead|arbiter.PermWrite, ipucArea)
	arb.Grant(arbiter.OwnerRadio, arbiter.PermRead|arbiter.PermWrite, sdfwArea)
	return ipuc.New(config.IPUCConfig{
		SDFWUpdateArea: sdfwArea,
		Logger:         logger,
	}, dev, arb, cache)
}

// bootLocal runs the local manifests the application root depends on,
// which declares their components for in-place update.
func bootLocal(ctx context.Context, processor *suit.EnvelopeProcessor, store *storage.Storage, logger *log.Logger) {
	for _, img := range localImages {
		envelope, err := store.InstalledEnvelope(ctx, img.ClassID)
		if err != nil {
			logger.Printf("%s: %v", img.Role, err)
			continue
		}
		for _, seq := range []suit.Sequence{suit.SequenceValidate, suit.SequenceInvoke} {
			if err := processor.ProcessSequence(ctx, envelope, seq); err != nil {
				logger.Printf("%s %s: %v", img.Role, seq, err)
				break
			}
		}
	}
}

// serve exposes the IPUC registry to the other cores until ctx is done.
func serve(ctx context.Context, addr string, registry *ipuc.Registry, store *storage.Storage, logger *log.Logger) error {
	srv, err := server.New(config.ServerConfig{Addr: addr, Logger: logger}, registry, store)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
