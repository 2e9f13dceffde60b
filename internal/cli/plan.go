package cli

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wms-platform/roadmap-service/internal/application"
	"github.com/wms-platform/roadmap-service/internal/domain"
	"github.com/wms-platform/roadmap-service/internal/infrastructure/catalog"
	"github.com/wms-platform/roadmap-service/internal/infrastructure/memory"
	"github.com/wms-platform/roadmap-service/pkg/logging"
)

type planOptions struct {
	catalog    string
	templateID string
	quantity   int
	start      string
	strategy   string
	employees  []string
	seed       uint64
}

func newPlanCmd(st *state) *cobra.Command {
	opts := &planOptions{}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Dry-run task generation for a template without a database",
		Example: `  roadmapctl plan --template TPL-CABINET --quantity 3 --start 2026-11-02 \
    --strategy ROLE_BASED --employees EMP-1:designer,EMP-2:machinist`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.catalog == "" && st.cfg != nil {
				opts.catalog = st.cfg.Engine.TemplateCatalog
			}
			bands := domain.DefaultPriorityBands()
			if st.cfg != nil {
				bands = st.cfg.Engine.PriorityBands
			}
			return runPlan(cmd, opts, bands)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.catalog, "catalog", "", "catalog file (default: the configured or built-in catalog)")
	f.StringVar(&opts.templateID, "template", "", "template to plan")
	f.IntVar(&opts.quantity, "quantity", 1, "number of units")
	f.StringVar(&opts.start, "start", "", "project start date YYYY-MM-DD (default: today)")
	f.StringVar(&opts.strategy, "strategy", string(domain.StrategyRoundRobin), "assignment strategy")
	f.StringSliceVar(&opts.employees, "employees", nil, "candidates as id:role pairs")
	f.Uint64Var(&opts.seed, "seed", 0, "seed for ROLE_BASED draws (0: random)")
	_ = cmd.MarkFlagRequired("template")

	return cmd
}

func runPlan(cmd *cobra.Command, opts *planOptions, bands domain.PriorityBands) error {
	ctx := context.Background()
	now := time.Now().UTC()

	start := domain.Day(now)
	if opts.start != "" {
		parsed, err := time.Parse(time.DateOnly, opts.start)
		if err != nil {
			return fmt.Errorf("invalid --start %q: want YYYY-MM-DD", opts.start)
		}
		start = parsed
	}

	templates, err := catalog.Load(opts.catalog, now)
	if err != nil {
		return err
	}

	employees, err := parseEmployees(opts.employees, now)
	if err != nil {
		return err
	}

	logConfig := logging.DefaultConfig("roadmapctl")
	logConfig.Level = logging.LevelWarn
	logConfig.Output = cmd.ErrOrStderr()
	logger := logging.New(logConfig)

	templateRepo := memory.NewTemplateRepository(templates...)
	projectRepo := memory.NewProjectRepository()
	roadmapRepo := memory.NewRoadmapRepository()
	employeeRepo := memory.NewEmployeeRepository(employees...)

	generator, err := application.NewTaskGenerator(bands)
	if err != nil {
		return err
	}
	engine := application.NewAssignmentEngine(memory.NewAttendanceRepository(), 0, logger, nil)
	if opts.seed != 0 {
		engine.WithRandSource(func() *rand.Rand { return rand.New(rand.NewPCG(opts.seed, opts.seed)) })
	}

	taskRepo := memory.NewTaskRepository()
	roadmaps := application.NewRoadmapService(templateRepo, projectRepo, roadmapRepo, logger, nil)
	generation := application.NewGenerationService(application.GenerationDeps{
		Projects:  projectRepo,
		Templates: templateRepo,
		Roadmaps:  roadmapRepo,
		Tasks:     taskRepo,
		Directory: employeeRepo,
		Generator: generator,
		Engine:    engine,
		Ledger:    application.NewGenerationLedger(memory.NewGenerationRepository(taskRepo), logger),
	}, logger, nil)

	const projectID = "DRY-RUN"
	if _, err := roadmaps.CreateProject(ctx, application.CreateProjectCommand{
		ProjectID: projectID,
		Name:      opts.templateID,
		Quantity:  opts.quantity,
		StartDate: start,
	}); err != nil {
		return err
	}
	roadmap, err := roadmaps.InstantiateRoadmap(ctx, application.InstantiateRoadmapCommand{
		ProjectID:  projectID,
		TemplateID: opts.templateID,
		ActorID:    "roadmapctl",
	})
	if err != nil {
		return err
	}

	result, err := generation.Generate(ctx, application.GenerateCommand{
		ProjectID:   projectID,
		RoadmapID:   roadmap.RoadmapID,
		Strategy:    domain.StrategyType(strings.ToUpper(opts.strategy)),
		GeneratedBy: "roadmapctl",
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tTITLE\tROLE\tPRIORITY\tSTART\tDUE\tASSIGNEE")
	for _, task := range result.Tasks {
		assignee := task.AssigneeID
		if assignee == "" {
			assignee = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			task.TaskID, task.Title, task.RequiredRole, task.Priority, task.StartDate, task.DueDate, assignee)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	s := result.Summary
	fmt.Fprintf(out, "\n%d tasks, %d assigned, %d unassigned (%s)\n", s.TaskCount, s.AssignedCount, s.UnassignedCount, strings.ToUpper(opts.strategy))
	for _, warning := range s.Warnings {
		fmt.Fprintf(out, "warning: %s %s\n", warning.Code, warning.Message)
	}
	return nil
}

func parseEmployees(pairs []string, now time.Time) ([]*domain.Employee, error) {
	employees := make([]*domain.Employee, 0, len(pairs))
	for _, pair := range pairs {
		id, role, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("invalid employee %q: want id:role", pair)
		}
		e, err := domain.NewEmployee(id, id, role, true, now)
		if err != nil {
			return nil, fmt.Errorf("invalid employee %q: %w", pair, err)
		}
		employees = append(employees, e)
	}
	return employees, nil
}
