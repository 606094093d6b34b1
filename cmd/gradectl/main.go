package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/sga-platform/sga-notas-api/internal/models"
	"github.com/sga-platform/sga-notas-api/internal/repository"
	"github.com/sga-platform/sga-notas-api/internal/service"
	"github.com/sga-platform/sga-notas-api/pkg/cache"
	"github.com/sga-platform/sga-notas-api/pkg/config"
	"github.com/sga-platform/sga-notas-api/pkg/database"
	"github.com/sga-platform/sga-notas-api/pkg/jobs"
	"github.com/sga-platform/sga-notas-api/pkg/logger"
	"github.com/sga-platform/sga-notas-api/pkg/notify"
)

const usage = `Usage: gradectl <command> [flags]

Commands:
  apply      apply a JSON batch of grade submissions
  average    print a record's stored and recomputed averages
  structure  report term structure completeness for a student in a course
  history    print the audit trail of a record
  stats      print aggregate final-average statistics for a course
  describe   list or edit per-course evaluation descriptions
  delete     delete a record and its audit trail
`

type app struct {
	records      *repository.RecordRepository
	descriptions *repository.DescriptionRepository

	calculator *service.GradeCalculator
	structure  *service.StructureService
	audit      *service.AuditService
	batch      *service.BatchService

	stopNotifications func()
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	a, cleanup, err := newApp(cfg, log)
	if err != nil {
		log.Sugar().Fatalw("startup failed", "error", err)
	}
	defer cleanup()

	ctx := context.Background()
	switch cmd := os.Args[1]; cmd {
	case "apply":
		err = a.runApply(ctx, os.Args[2:])
	case "average":
		err = a.runAverage(ctx, os.Args[2:])
	case "structure":
		err = a.runStructure(ctx, os.Args[2:])
	case "history":
		err = a.runHistory(ctx, os.Args[2:])
	case "stats":
		err = a.runStats(ctx, os.Args[2:])
	case "describe":
		err = a.runDescribe(ctx, os.Args[2:])
	case "delete":
		err = a.runDelete(ctx, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Sugar().Fatalw("command failed", "command", os.Args[1], "error", err)
	}
}

func newApp(cfg *config.Config, log *zap.Logger) (*app, func(), error) {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		log.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}
	cacheRepo := repository.NewCacheRepository(redisClient, log)

	records := repository.NewRecordRepository(db)
	audits := repository.NewAuditRepository(db)
	enrollments := repository.NewEnrollmentRepository(db)
	descriptions := repository.NewDescriptionRepository(db)
	directory := repository.NewDirectoryRepository(db)

	metrics := service.NewMetricsService()
	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Port, metrics, log)
	}

	calculator := service.NewGradeCalculator(cfg.Grading.ApprovalThreshold, models.WeightConfiguration{
		models.EvaluationTypeEvaluation: cfg.Grading.EvaluationWeight,
		models.EvaluationTypePractice:   cfg.Grading.PracticeWeight,
		models.EvaluationTypePartial:    cfg.Grading.PartialWeight,
	})
	expected := models.StructureExpectation{
		Evaluations: cfg.Grading.ExpectedEvaluations,
		Practices:   cfg.Grading.ExpectedPractices,
		Partials:    cfg.Grading.ExpectedPartials,
	}

	reconciler := service.NewReconcileService(records, enrollments, calculator, cacheRepo, metrics, nil, log)
	audit := service.NewAuditService(audits, metrics, log)
	structure := service.NewStructureService(records, cacheRepo, expected, cfg.Grading.StructureCacheTTL, log)

	var notifications *service.NotificationService
	stopNotifications := func() {}
	if cfg.Notifications.Enabled && cfg.SMTP.Host != "" {
		dispatcher := notify.NewSMTPDispatcher(cfg.SMTP, log)
		notifications = service.NewNotificationService(directory, directory, descriptions, dispatcher, metrics, jobs.QueueConfig{
			Workers:    cfg.Notifications.Workers,
			BufferSize: cfg.Notifications.BufferSize,
			MaxRetries: cfg.Notifications.MaxRetries,
			RetryDelay: cfg.Notifications.RetryDelay,
			Logger:     log,
		}, log)
		notifications.Start(context.Background())
		stopNotifications = notifications.Stop
	}

	batch := service.NewBatchService(reconciler, audit, notifications, log)

	a := &app{
		records:           records,
		descriptions:      descriptions,
		calculator:        calculator,
		structure:         structure,
		audit:             audit,
		batch:             batch,
		stopNotifications: stopNotifications,
	}
	cleanup := func() {
		a.stopNotifications()
		_ = cacheRepo.Close()
		_ = db.Close()
	}
	return a, cleanup, nil
}

func serveMetrics(port int, metrics *service.MetricsService, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	addr := fmt.Sprintf(":%d", port)
	log.Sugar().Infow("metrics listener started", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Sugar().Warnw("metrics listener stopped", "error", err)
	}
}

func (a *app) runApply(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("apply", flag.ExitOnError)
	file := fs.String("file", "", "path to a JSON batch file")
	actor := fs.String("actor", "", "actor recorded on audit entries, overrides per-item actors")
	fs.Parse(args) //nolint:errcheck

	if *file == "" {
		return fmt.Errorf("apply requires -file")
	}
	raw, err := os.ReadFile(*file)
	if err != nil {
		return err
	}
	var req service.BatchRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("parse batch file: %w", err)
	}
	if *actor != "" {
		for i := range req.Items {
			req.Items[i].Actor = *actor
		}
	}

	result, err := a.batch.Apply(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("Batch result for course %s\n", req.CourseID)
	fmt.Printf("  created: %d\n", result.Created)
	fmt.Printf("  updated: %d\n", result.Updated)
	fmt.Printf("  failed:  %d\n", len(result.Errors))
	for _, e := range result.Errors {
		fmt.Printf("  [#%d] student %s: %s\n", e.Index, e.StudentID, e.Reason)
	}
	return nil
}

func (a *app) runAverage(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("average", flag.ExitOnError)
	student := fs.String("student", "", "student id")
	course := fs.String("course", "", "course id")
	evalType := fs.String("type", string(models.EvaluationTypeEvaluation), "evaluation type")
	fs.Parse(args) //nolint:errcheck

	if *student == "" || *course == "" {
		return fmt.Errorf("average requires -student and -course")
	}

	record, err := a.records.GetByKey(ctx, *student, *course, models.EvaluationType(*evalType))
	if err != nil {
		return err
	}

	fmt.Printf("Record %s (%s / %s / %s)\n", record.ID, record.StudentID, record.CourseID, record.EvaluationType)
	fmt.Printf("  stored average: %s  status: %s\n", formatAverage(record.FinalAverage), record.Status)

	simple, simpleStatus := a.calculator.SimpleMean(record)
	weighted, weightedStatus := a.calculator.CategoryWeighted(record)
	fmt.Printf("  simple mean:      %s (%s)\n", formatAverage(simple), simpleStatus)
	fmt.Printf("  category weighted: %s (%s, threshold %.2f)\n", formatAverage(weighted), weightedStatus, a.calculator.ApprovalThreshold())
	return nil
}

func (a *app) runStructure(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("structure", flag.ExitOnError)
	student := fs.String("student", "", "student id")
	course := fs.String("course", "", "course id")
	fs.Parse(args) //nolint:errcheck

	if *student == "" || *course == "" {
		return fmt.Errorf("structure requires -student and -course")
	}

	report, err := a.structure.Validate(ctx, *student, *course)
	if err != nil {
		return err
	}

	fmt.Printf("Structure for student %s in course %s\n", report.StudentID, report.CourseID)
	printCategory("evaluations", report.Evaluations)
	printCategory("practices", report.Practices)
	printCategory("partials", report.Partials)
	fmt.Printf("  complete: %t\n", report.StructureComplete)
	return nil
}

func printCategory(name string, count models.CategoryCount) {
	fmt.Printf("  %-12s %d/%d", name, count.Recorded, count.Expected)
	if !count.Complete {
		fmt.Print("  (incomplete)")
	}
	fmt.Println()
}

func (a *app) runHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	record := fs.String("record", "", "record id")
	fs.Parse(args) //nolint:errcheck

	if *record == "" {
		return fmt.Errorf("history requires -record")
	}

	entries, err := a.audit.History(ctx, *record)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Printf("No audit entries for record %s\n", *record)
		return nil
	}

	for _, entry := range entries {
		fmt.Printf("%s  %s  by %s\n", entry.CreatedAt.Format(time.RFC3339), entry.ID, entry.Actor)
		if entry.Reason != "" {
			fmt.Printf("  reason: %s\n", entry.Reason)
		}
		for _, change := range entry.Changes {
			fmt.Printf("  %s: %s -> %s\n", change.Slot, formatAverage(change.Old), formatAverage(change.New))
		}
	}
	return nil
}

func (a *app) runStats(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	course := fs.String("course", "", "course id")
	fs.Parse(args) //nolint:errcheck

	if *course == "" {
		return fmt.Errorf("stats requires -course")
	}

	stats, err := a.records.CourseStatistics(ctx, *course, a.calculator.ApprovalThreshold())
	if err != nil {
		return err
	}

	fmt.Printf("Course %s\n", stats.CourseID)
	fmt.Printf("  approved:    %d\n", stats.Approved)
	fmt.Printf("  disapproved: %d\n", stats.Disapproved)
	fmt.Printf("  min/max/avg: %s / %s / %s\n", formatAverage(stats.Min), formatAverage(stats.Max), formatAverage(stats.Average))
	return nil
}

func (a *app) runDescribe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("describe", flag.ExitOnError)
	course := fs.String("course", "", "course id")
	slotName := fs.String("slot", "", "slot name, e.g. evaluation1")
	text := fs.String("text", "", "description text to store for the slot")
	date := fs.String("date", "", "evaluation date (2006-01-02)")
	remove := fs.Bool("remove", false, "remove the slot's description")
	fs.Parse(args) //nolint:errcheck

	if *course == "" {
		return fmt.Errorf("describe requires -course")
	}

	if *slotName == "" {
		descriptions, err := a.descriptions.ListByCourse(ctx, *course)
		if err != nil {
			return err
		}
		if len(descriptions) == 0 {
			fmt.Printf("No descriptions for course %s\n", *course)
			return nil
		}
		for _, d := range descriptions {
			fmt.Printf("%-12s %s\n", d.Slot, d.Description)
		}
		return nil
	}

	slot, ok := models.ParseSlot(*slotName)
	if !ok {
		return fmt.Errorf("unknown slot %q", *slotName)
	}

	if *remove {
		if err := a.descriptions.Delete(ctx, *course, slot); err != nil {
			return err
		}
		fmt.Printf("Removed description for %s in course %s\n", slot, *course)
		return nil
	}

	if *text == "" {
		return fmt.Errorf("describe requires -text or -remove with -slot")
	}
	desc := &models.EvaluationDescription{
		CourseID:    *course,
		Slot:        slot,
		Description: *text,
	}
	if *date != "" {
		parsed, err := time.Parse("2006-01-02", *date)
		if err != nil {
			return fmt.Errorf("parse -date: %w", err)
		}
		desc.EvaluationDate = &parsed
	}
	if err := a.descriptions.Upsert(ctx, desc); err != nil {
		return err
	}
	fmt.Printf("Stored description for %s in course %s\n", slot, *course)
	return nil
}

func (a *app) runDelete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	record := fs.String("record", "", "record id")
	confirm := fs.Bool("yes", false, "confirm deletion")
	fs.Parse(args) //nolint:errcheck

	if *record == "" {
		return fmt.Errorf("delete requires -record")
	}
	if !*confirm {
		return fmt.Errorf("delete removes the record and its audit trail, pass -yes to confirm")
	}

	if err := a.records.Delete(ctx, *record); err != nil {
		return err
	}
	fmt.Printf("Deleted record %s and its audit trail\n", *record)
	return nil
}

func formatAverage(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}
