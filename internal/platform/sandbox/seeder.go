// Package sandbox seeds demo environments: the three role accounts, the
// configured triage model and optionally a batch of reproducible sample cases.
package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/cjLee-cmd/acuzen-ICBM/internal/domain/cases"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/domain/identity"
	"github.com/cjLee-cmd/acuzen-ICBM/internal/platform/auth"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// SeedConfig controls what the seeder writes.
type SeedConfig struct {
	CaseCount    int
	ModelName    string
	ModelVersion string
	Seed         int64
}

// DemoAccount is one of the fixed demo logins.
type DemoAccount struct {
	Email    string
	Name     string
	Password string
	Role     auth.Role
}

// DemoAccounts are created when missing. The USER account reports the
// sample cases.
var DemoAccounts = []DemoAccount{
	{Email: "admin@pharma.com", Name: "System Administrator", Password: "admin123!", Role: auth.RoleAdmin},
	{Email: "reviewer@pharma.com", Name: "Clinical Reviewer", Password: "reviewer123!", Role: auth.RoleReviewer},
	{Email: "user@pharma.com", Name: "Case Reporter", Password: "user123!", Role: auth.RoleUser},
}

const demoOrganization = "Demo Pharma"

// SeedResult summarizes a seed run.
type SeedResult struct {
	UsersCreated  int           `json:"usersCreated"`
	UsersExisting int           `json:"usersExisting"`
	ModelCreated  bool          `json:"modelCreated"`
	CasesCreated  int           `json:"casesCreated"`
	Duration      time.Duration `json:"duration"`
}

// ---------------------------------------------------------------------------
// Collaborators
// ---------------------------------------------------------------------------

type UserStore interface {
	EnsureUser(ctx context.Context, req identity.CreateUserRequest) (*identity.User, bool, error)
}

type ModelRegistry interface {
	Ensure(ctx context.Context, name, version string) (bool, error)
}

type CaseWriter interface {
	Create(ctx context.Context, req cases.CreateRequest) (*cases.Case, error)
}

// ---------------------------------------------------------------------------
// Term pools
// ---------------------------------------------------------------------------

var (
	drugs = []struct{ name, dosage string }{
		{"Atorvastatin", "20mg daily"},
		{"Metformin", "500mg twice daily"},
		{"Amoxicillin", "500mg three times daily"},
		{"Lisinopril", "10mg daily"},
		{"Warfarin", "5mg daily"},
		{"Ibuprofen", "400mg as needed"},
		{"Sertraline", "50mg daily"},
		{"Levothyroxine", "75mcg daily"},
		{"Clopidogrel", "75mg daily"},
		{"Carbamazepine", "200mg twice daily"},
	}
	reactions = []struct{ name, description string }{
		{"Rash", "Erythematous maculopapular rash on trunk and arms"},
		{"Myalgia", "Diffuse muscle pain and weakness"},
		{"Nausea", "Persistent nausea with occasional vomiting"},
		{"Angioedema", "Swelling of lips and tongue"},
		{"Hepatotoxicity", "Elevated ALT and AST above three times the upper limit"},
		{"GI bleeding", "Melena with a drop in hemoglobin"},
		{"Hyponatremia", "Serum sodium 126 mmol/L with confusion"},
		{"Stevens-Johnson syndrome", "Mucosal erosions with skin detachment"},
		{"Dizziness", "Orthostatic dizziness on standing"},
		{"QT prolongation", "QTc 510ms on routine ECG"},
	}
	genders   = []string{"Male", "Female"}
	outcomes  = []string{"Recovered", "Recovering", "Ongoing", "Recovered with sequelae"}
	histories = []string{
		"Hypertension", "Type 2 diabetes", "Chronic kidney disease stage 3",
		"No significant history", "Atrial fibrillation", "Epilepsy",
	}
	meds = []string{"Aspirin", "Omeprazole", "Amlodipine", "Paracetamol", "Vitamin D"}

	severities = []cases.Severity{cases.SeverityLow, cases.SeverityMedium, cases.SeverityHigh, cases.SeverityCritical}
	statuses   = []cases.Status{cases.StatusUrgent, cases.StatusNeedsReview, cases.StatusInProgress, cases.StatusComplete}
)

// ---------------------------------------------------------------------------
// CaseGenerator
// ---------------------------------------------------------------------------

// CaseGenerator produces deterministic sample case reports.
type CaseGenerator struct {
	rng *rand.Rand
	now func() time.Time
}

// NewCaseGenerator returns a generator seeded for reproducibility. If seed is
// 0 a time-based seed is chosen.
func NewCaseGenerator(seed int64) *CaseGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &CaseGenerator{rng: rand.New(rand.NewSource(seed)), now: time.Now}
}

func (g *CaseGenerator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

// Generate builds one create request.
func (g *CaseGenerator) Generate() cases.CreateRequest {
	drug := drugs[g.rng.Intn(len(drugs))]
	reaction := reactions[g.rng.Intn(len(reactions))]
	age := 18 + g.rng.Intn(70)
	onset := g.now().AddDate(0, 0, -g.rng.Intn(30)).Format(time.DateOnly)

	concomitant := make([]string, 0, 2)
	for _, i := range g.rng.Perm(len(meds))[:g.rng.Intn(3)] {
		concomitant = append(concomitant, meds[i])
	}
	dosage := drug.dosage
	description := reaction.description
	history := g.pick(histories)
	outcome := g.pick(outcomes)

	req := cases.CreateRequest{
		PatientAge:          &age,
		PatientGender:       g.pick(genders),
		DrugName:            drug.name,
		DrugDosage:          &dosage,
		AdverseReaction:     reaction.name,
		ReactionDescription: &description,
		Severity:            string(severities[g.rng.Intn(len(severities))]),
		Status:              string(statuses[g.rng.Intn(len(statuses))]),
		DateOfReaction:      &onset,
		MedicalHistory:      &history,
		Outcome:             &outcome,
	}
	if len(concomitant) > 0 {
		list, _ := json.Marshal(concomitant)
		req.ConcomitantMeds = cases.Text(string(list))
	}
	return req
}

// ---------------------------------------------------------------------------
// Seeder
// ---------------------------------------------------------------------------

// Seeder writes the demo data set through the domain services, so seeded
// records pass the same validation as API writes.
type Seeder struct {
	users     UserStore
	models    ModelRegistry
	cases     CaseWriter
	generator *CaseGenerator
	config    SeedConfig
	logger    zerolog.Logger
}

// NewSeeder creates a Seeder with the given config.
func NewSeeder(config SeedConfig, users UserStore, models ModelRegistry, cw CaseWriter, logger zerolog.Logger) *Seeder {
	return &Seeder{
		users:     users,
		models:    models,
		cases:     cw,
		generator: NewCaseGenerator(config.Seed),
		config:    config,
		logger:    logger.With().Str("component", "seeder").Logger(),
	}
}

// Run is idempotent for accounts and the model; sample cases are added on
// every run that asks for them.
func (s *Seeder) Run(ctx context.Context) (*SeedResult, error) {
	start := time.Now()
	result := &SeedResult{}

	var reporter *identity.User
	for _, acct := range DemoAccounts {
		org := demoOrganization
		u, created, err := s.users.EnsureUser(ctx, identity.CreateUserRequest{
			Email:        acct.Email,
			Name:         acct.Name,
			Password:     acct.Password,
			Role:         string(acct.Role),
			Organization: &org,
		})
		if err != nil {
			return nil, fmt.Errorf("seed user %s: %w", acct.Email, err)
		}
		if created {
			result.UsersCreated++
			s.logger.Info().Str("email", acct.Email).Str("role", string(acct.Role)).Msg("created demo user")
		} else {
			result.UsersExisting++
		}
		if acct.Role == auth.RoleUser {
			reporter = u
		}
	}

	if s.config.ModelName != "" {
		created, err := s.models.Ensure(ctx, s.config.ModelName, s.config.ModelVersion)
		if err != nil {
			return nil, fmt.Errorf("seed model: %w", err)
		}
		result.ModelCreated = created
	}

	if s.config.CaseCount > 0 {
		if reporter == nil {
			return nil, fmt.Errorf("seed cases: no USER account")
		}
		reporterCtx := auth.WithPrincipal(ctx, reporter.Principal())
		for i := 0; i < s.config.CaseCount; i++ {
			if _, err := s.cases.Create(reporterCtx, s.generator.Generate()); err != nil {
				return nil, fmt.Errorf("seed case %d: %w", i+1, err)
			}
			result.CasesCreated++
		}
	}

	result.Duration = time.Since(start)
	s.logger.Info().
		Int("users_created", result.UsersCreated).
		Bool("model_created", result.ModelCreated).
		Int("cases_created", result.CasesCreated).
		Dur("duration", result.Duration).
		Msg("seed complete")
	return result, nil
}
