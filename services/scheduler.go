// services/scheduler.go
package services

import (
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartScheduler wires the periodic jobs. Every job is a named singleton so a
// slow pass reschedules instead of overlapping itself; each run rebuilds its
// view from the store, so a missed or repeated tick is safe.
func StartScheduler(quota *QuotaService, warnings *WarningService, tournaments *TournamentService, export *ExportService) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	jobs := []struct {
		name string
		def  gocron.JobDefinition
		task func() error
	}{
		{"spin-refill", gocron.DurationJob(1 * time.Minute), quota.RefillSpins},
		{"spin-warnings", gocron.DurationJob(1 * time.Minute), warnings.SendSpinWarnings},
		{"daily-spin-limit", gocron.CronJob("1 0 * * *", false), quota.UpdateSpinsLimit},
		{"tournament-start", gocron.CronJob("1 0 * * 1", false), func() error {
			_, err := tournaments.StartTournament()
			return err
		}},
		{"tournament-end", gocron.CronJob("1 19 * * 0", false), tournaments.EndTournament},
		{"user-export", gocron.DurationJob(10 * time.Minute), export.UnloadUsers},
	}

	for _, j := range jobs {
		name := j.name
		task := j.task
		_, err := sched.NewJob(
			j.def,
			gocron.NewTask(func() {
				if err := task(); err != nil {
					log.Printf("❌ [Scheduler] %s failed: %v", name, err)
				}
			}),
			gocron.WithName(name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return nil, fmt.Errorf("register job %s: %w", name, err)
		}
	}

	sched.Start()
	log.Printf("✅ [Scheduler] %d jobs running", len(jobs))
	return sched, nil
}
