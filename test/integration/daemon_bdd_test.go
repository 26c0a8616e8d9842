//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/hypnos/internal/daemon"
	"github.com/eliteGoblin/hypnos/internal/domain"
	"github.com/eliteGoblin/hypnos/internal/infra"
	"github.com/eliteGoblin/hypnos/internal/rules"
	"github.com/eliteGoblin/hypnos/test/fixtures"
)

// chanSource forwards events sent on feed to the daemon's queue.
type chanSource struct {
	feed chan domain.Event
}

func (s *chanSource) Name() string { return "test" }

func (s *chanSource) Run(ctx context.Context, sink domain.EventSink) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.feed:
			if err := sink.Push(ev); err != nil {
				return err
			}
		}
	}
}

type harness struct {
	dir       string
	rulesFile string
	comp      *fixtures.FakeCompositor
	feed      chan domain.Event
	instances *infra.FileInstanceRegistry
	daemon    *daemon.Daemon
	cancel    context.CancelFunc
	errCh     chan error
}

func startHarness(content string, runner domain.CommandRunner) *harness {
	dir := GinkgoT().TempDir()
	h := &harness{
		dir:       dir,
		rulesFile: filepath.Join(dir, "config.json"),
		comp:      fixtures.NewFakeCompositor(),
		feed:      make(chan domain.Event),
		errCh:     make(chan error, 1),
	}
	Expect(os.WriteFile(h.rulesFile, []byte(content), 0644)).To(Succeed())

	logger := zap.NewNop()
	h.instances = infra.NewFileInstanceRegistry(filepath.Join(dir, "instance.json"), infra.NewProcessManager())

	config := daemon.DefaultConfig()
	config.InhibitDuration = 50 * time.Millisecond

	sources := []domain.EventSource{
		&chanSource{feed: h.feed},
		infra.NewRuleFileWatcher(h.rulesFile, logger),
	}
	info := domain.DaemonInfo{PID: os.Getpid(), StartedAt: time.Now(), RulesFile: h.rulesFile}
	h.daemon = daemon.New(config, h.comp, rules.NewFileSource(h.rulesFile, logger), runner, sources, h.instances, info, logger)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.errCh <- h.daemon.Run(ctx) }()

	DeferCleanup(func() {
		cancel()
		Eventually(h.errCh).WithTimeout(2 * time.Second).Should(Receive())
	})

	h.comp.AdvertiseAll()
	return h
}

func (h *harness) send(ev domain.Event) {
	Eventually(h.feed).WithTimeout(time.Second).Should(BeSent(ev))
}

func (h *harness) live() []fixtures.SubscriptionRecord {
	return h.comp.LiveSubscriptions()
}

func (h *harness) subscriptionFor(timeoutMs uint32) domain.SubscriptionID {
	for _, s := range h.live() {
		if s.TimeoutMs == timeoutMs {
			return s.ID
		}
	}
	Fail("no live subscription with the requested timeout")
	return domain.SubscriptionID{}
}

const twoRules = `[
  {"timeout": 1, "action": "echoA"},
  {"timeout": 2, "action": "echoB", "restoreAction": "echoB-restore"}
]`

var _ = Describe("Idle daemon", func() {
	var (
		h      *harness
		runner *fixtures.RecordingRunner
	)

	Describe("startup", func() {
		BeforeEach(func() {
			runner = &fixtures.RecordingRunner{}
			h = startHarness(twoRules, runner)
		})

		It("subscribes one notification per rule with the rule timeout in milliseconds", func() {
			Eventually(h.live).Should(HaveLen(2))

			var timeouts []uint32
			ids := map[domain.SubscriptionID]bool{}
			for _, s := range h.live() {
				timeouts = append(timeouts, s.TimeoutMs)
				ids[s.ID] = true
			}
			Expect(timeouts).To(ConsistOf(uint32(1000), uint32(2000)))
			Expect(ids).To(HaveLen(2))
			Expect(h.daemon.Notifications().Len()).To(Equal(2))
		})

		It("records itself in the instance file while running", func() {
			Eventually(func() error {
				_, err := h.instances.Get()
				return err
			}).Should(Succeed())

			info, err := h.instances.Get()
			Expect(err).NotTo(HaveOccurred())
			Expect(info.PID).To(Equal(os.Getpid()))
			Expect(info.RulesFile).To(Equal(h.rulesFile))
		})
	})

	Describe("idle and resume", func() {
		BeforeEach(func() {
			runner = &fixtures.RecordingRunner{}
			h = startHarness(twoRules, runner)
			Eventually(h.live).Should(HaveLen(2))
		})

		It("runs the action and then the restore action for the same subscription", func() {
			id := h.subscriptionFor(2000)

			h.comp.Idle(id)
			h.comp.Resume(id)

			Eventually(runner.Commands).Should(Equal([]string{"echoB", "echoB-restore"}))
			Consistently(runner.Commands, 100*time.Millisecond).Should(HaveLen(2))
		})

		It("ignores events for unknown subscriptions", func() {
			h.comp.Idle(domain.NewSubscriptionID())
			h.comp.Resume(domain.NewSubscriptionID())
			h.comp.Sync()

			Consistently(runner.Commands, 100*time.Millisecond).Should(BeEmpty())
		})

		It("skips actions while paused and resumes afterwards", func() {
			id := h.subscriptionFor(1000)

			h.send(domain.TogglePause{})
			Eventually(h.daemon.State().Paused).Should(BeTrue())

			h.comp.Idle(id)
			h.comp.Sync()
			Consistently(runner.Commands, 100*time.Millisecond).Should(BeEmpty())

			h.send(domain.TogglePause{})
			Eventually(h.daemon.State().Paused).Should(BeFalse())

			h.comp.Idle(id)
			Eventually(runner.Commands).Should(Equal([]string{"echoA"}))
		})
	})

	Describe("battery gate", func() {
		BeforeEach(func() {
			runner = &fixtures.RecordingRunner{}
			h = startHarness(`[{"timeout": 5, "action": "lock", "onBatteryOnly": true}]`, runner)
			Eventually(h.live).Should(HaveLen(1))
		})

		It("fires only once the device is known to be on battery", func() {
			id := h.subscriptionFor(5000)

			h.comp.Idle(id)
			h.comp.Sync()
			Consistently(runner.Commands, 100*time.Millisecond).Should(BeEmpty())

			h.send(domain.PowerStateChanged{OnBattery: false})
			Eventually(h.daemon.State().PowerState).Should(Equal(domain.PowerAC))
			h.comp.Idle(id)
			h.comp.Sync()
			Consistently(runner.Commands, 100*time.Millisecond).Should(BeEmpty())

			h.send(domain.PowerStateChanged{OnBattery: true})
			Eventually(h.daemon.State().PowerState).Should(Equal(domain.PowerBattery))
			h.comp.Idle(id)
			Eventually(runner.Commands).Should(Equal([]string{"lock"}))
		})
	})

	Describe("rule file reload", func() {
		BeforeEach(func() {
			runner = &fixtures.RecordingRunner{}
			h = startHarness(twoRules, runner)
			Eventually(h.live).Should(HaveLen(2))
		})

		It("rebuilds subscriptions when the file changes", func() {
			before := h.live()

			Expect(os.WriteFile(h.rulesFile, []byte(`[{"timeout": 30, "action": "dim"}]`), 0644)).To(Succeed())

			Eventually(h.live).Should(HaveLen(1))
			Expect(h.live()[0].TimeoutMs).To(Equal(uint32(30000)))

			for _, old := range before {
				for _, s := range h.comp.Subscriptions() {
					if s.ID == old.ID {
						Expect(s.Destroyed).To(Equal(1))
					}
				}
			}
		})

		It("keeps the current rules when the new file does not parse", func() {
			Expect(os.WriteFile(h.rulesFile, []byte(`[{"timeout": `), 0644)).To(Succeed())

			Consistently(h.live, 300*time.Millisecond).Should(HaveLen(2))
			Expect(h.daemon.Notifications().Len()).To(Equal(2))

			id := h.subscriptionFor(1000)
			h.comp.Idle(id)
			Eventually(runner.Commands).Should(Equal([]string{"echoA"}))
		})
	})

	Describe("inhibit", func() {
		BeforeEach(func() {
			runner = &fixtures.RecordingRunner{}
			h = startHarness(twoRules, runner)
			Eventually(h.live).Should(HaveLen(2))
		})

		It("creates one inhibitor for overlapping requests and destroys it once", func() {
			h.send(domain.Inhibit{})
			h.send(domain.Inhibit{})

			Eventually(func() int {
				created, _ := h.comp.Inhibitors()
				return created
			}).Should(Equal(1))
			Eventually(func() int {
				_, destroyed := h.comp.Inhibitors()
				return destroyed
			}).Should(Equal(1))

			created, _ := h.comp.Inhibitors()
			Expect(created).To(Equal(1))
		})
	})

	Describe("shell actions", func() {
		It("spawns the action command", func() {
			dir := GinkgoT().TempDir()
			marker := filepath.Join(dir, "idle")
			h = startHarness(`[{"timeout": 1, "action": "touch `+marker+`"}]`, infra.NewShellRunner(zap.NewNop()))
			Eventually(h.live).Should(HaveLen(1))

			h.comp.Idle(h.subscriptionFor(1000))

			Eventually(func() error {
				_, err := os.Stat(marker)
				return err
			}).WithTimeout(2 * time.Second).Should(Succeed())
		})
	})

	Describe("connection loss", func() {
		It("stops the daemon with a connection error", func() {
			runner = &fixtures.RecordingRunner{}
			h = startHarness(twoRules, runner)
			Eventually(h.live).Should(HaveLen(2))

			h.comp.Disconnect(context.DeadlineExceeded)

			var err error
			Eventually(h.errCh).WithTimeout(2 * time.Second).Should(Receive(&err))
			Expect(err).To(MatchError(domain.ErrConnectionLost))
			Expect(h.comp.Closed()).To(BeTrue())

			// DeferCleanup waits on errCh; refill it.
			h.errCh <- err
		})
	})
})
