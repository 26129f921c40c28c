package tierq_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fieldmotion/tierq"
)

var _ = Describe("Scheduler", func() {
	var sched *tierq.Scheduler

	newScheduler := func(cfg *tierq.Config) *tierq.Scheduler {
		if cfg == nil {
			cfg = &tierq.Config{
				Cooldown:              10 * time.Millisecond,
				ForegroundConcurrency: 4,
			}
		}
		return tierq.NewScheduler(cfg, testLogger())
	}

	AfterEach(func() {
		if sched != nil {
			_ = sched.Close()
			sched = nil
		}
	})

	Describe("Primary queue exclusivity", func() {
		It("should keep the secondary queue suspended while the primary queue is non-empty", func() {
			sched = newScheduler(nil)

			release := make(chan struct{})
			started := make(chan struct{})
			sched.AddPrimaryJob("urgent-1", func() {
				close(started)
				<-release
			})
			Eventually(started).Should(BeClosed())

			// Suspension is requested synchronously within the submission.
			Expect(sched.Stats().Secondary.Suspended).To(BeTrue())

			sched.AddPrimaryJob("urgent-2", func() {})
			Expect(sched.Stats().Secondary.Suspended).To(BeTrue())

			// A secondary job submitted now must not start.
			secondaryRan := make(chan struct{})
			sched.AddSecondaryJob("deferrable", false, func() {
				close(secondaryRan)
			})
			Consistently(secondaryRan, 50*time.Millisecond).ShouldNot(BeClosed())

			close(release)
			Eventually(func() int {
				stats := sched.Stats()
				return stats.Primary.Pending + stats.Primary.Running
			}).Should(BeZero())

			// Primary drained while foregrounded: auto-resume, secondary runs.
			Eventually(func() bool { return sched.Stats().Secondary.Suspended }).Should(BeFalse())
			Eventually(secondaryRan).Should(BeClosed())
		})

		It("should run primary jobs one at a time in submission order", func() {
			sched = newScheduler(nil)

			order := make(chan string, 3)
			for _, name := range []string{"first", "second", "third"} {
				name := name
				sched.AddPrimaryJob(name, func() {
					order <- name
					time.Sleep(10 * time.Millisecond)
				})
			}

			Eventually(order).Should(Receive(Equal("first")))
			Eventually(order).Should(Receive(Equal("second")))
			Eventually(order).Should(Receive(Equal("third")))
		})
	})

	Describe("Secondary queue dedupe", func() {
		It("should keep exactly one pending job per name when dedupe is requested", func() {
			sched = newScheduler(nil)
			sched.Pause(0) // hold submissions pending

			sched.AddSecondaryJob("X", true, func() {})
			sched.AddSecondaryJob("X", true, func() {})

			Expect(sched.Stats().Secondary.Pending).To(Equal(1))
		})

		It("should allow duplicate names when dedupe is not requested", func() {
			sched = newScheduler(nil)
			sched.Pause(0)

			sched.AddSecondaryJob("X", false, func() {})
			sched.AddSecondaryJob("X", false, func() {})

			Expect(sched.Stats().Secondary.Pending).To(Equal(2))
		})
	})

	Describe("Foreground concurrency", func() {
		It("should run up to the foreground limit of secondary jobs concurrently and drain them all", func() {
			sched = newScheduler(nil)

			release := make(chan struct{})
			started := make(chan string, 3)
			for _, name := range []string{"a", "b", "c"} {
				name := name
				sched.AddSecondaryJob(name, true, func() {
					started <- name
					<-release
				})
			}

			// All three run concurrently: min(3, N) with N = 4.
			Eventually(started).Should(HaveLen(3))

			close(release)
			Eventually(func() int {
				stats := sched.Stats()
				return stats.Secondary.Pending + stats.Secondary.Running
			}).Should(BeZero())
		})
	})

	Describe("Lifecycle transitions", func() {
		// A blocked primary job keeps the secondary queue's pending jobs in
		// place so their priority is observable.
		var release chan struct{}

		BeforeEach(func() {
			sched = newScheduler(nil)
			release = make(chan struct{})
			started := make(chan struct{})
			sched.AddPrimaryJob("blocker", func() {
				close(started)
				<-release
			})
			Eventually(started).Should(BeClosed())

			sched.AddSecondaryJob("model-a", true, func() {})
			sched.AddSecondaryJob("model-b", true, func() {})
		})

		AfterEach(func() {
			close(release)
		})

		pendingPriorities := func() []tierq.Priority {
			var priorities []tierq.Priority
			for _, job := range sched.Stats().Secondary.Jobs {
				priorities = append(priorities, job.Priority)
			}
			return priorities
		}

		It("should demote on background and promote on foreground", func() {
			Expect(pendingPriorities()).To(ConsistOf(tierq.PriorityUtility, tierq.PriorityUtility))

			sched.OnBackground()
			stats := sched.Stats()
			Expect(stats.Foreground).To(BeFalse())
			Expect(stats.Secondary.MaxConcurrency).To(Equal(1))
			Expect(stats.Secondary.Priority).To(Equal(tierq.PriorityBackground))
			Expect(pendingPriorities()).To(ConsistOf(tierq.PriorityBackground, tierq.PriorityBackground))

			sched.OnForeground()
			stats = sched.Stats()
			Expect(stats.Foreground).To(BeTrue())
			Expect(stats.Secondary.MaxConcurrency).To(Equal(4))
			Expect(stats.Secondary.Priority).To(Equal(tierq.PriorityUserInitiated))
			Expect(pendingPriorities()).To(ConsistOf(tierq.PriorityUserInitiated, tierq.PriorityUserInitiated))
		})

		It("should be idempotent for repeated transitions", func() {
			sched.OnBackground()
			first := sched.Stats()
			sched.OnBackground()
			Expect(sched.Stats()).To(Equal(first))

			sched.OnForeground()
			first = sched.Stats()
			sched.OnForeground()
			Expect(sched.Stats()).To(Equal(first))
		})

		It("should pick the submission priority from the lifecycle state", func() {
			sched.OnBackground()
			sched.AddSecondaryJob("model-c", true, func() {})
			Expect(pendingPriorities()).To(ContainElement(tierq.PriorityBackground))

			sched.OnForeground()
			sched.AddSecondaryJob("model-d", true, func() {})
			Expect(pendingPriorities()).To(ContainElement(tierq.PriorityUtility))
		})
	})

	Describe("Change notifications", func() {
		It("should signal subscribers when pending counts change", func() {
			sched = newScheduler(nil)

			events, unsubscribe := sched.Subscribe()
			defer unsubscribe()

			done := make(chan struct{})
			sched.AddSecondaryJob("observable", false, func() { close(done) })

			Eventually(events).Should(Receive())
			Eventually(done).Should(BeClosed())
		})
	})
})
