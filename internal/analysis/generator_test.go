package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/business-discovery/internal/business"
)

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type fakeIDs struct{}

func (fakeIDs) NewShortID(n int) string { return "task-" + strings.Repeat("a", n) }

type fakeCompleter struct {
	reply  string
	err    error
	system string
	user   string
}

func (f *fakeCompleter) Complete(_ context.Context, system, user string) (string, error) {
	f.system, f.user = system, user
	return f.reply, f.err
}

var fixedNow = time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

func newGenerator(t *testing.T, c Completer, variant HarnessVariant) *Generator {
	t.Helper()
	g, err := NewGenerator(Config{Completer: c, Variant: variant, Clock: fakeClock{now: fixedNow}, IDs: fakeIDs{}})
	require.NoError(t, err)
	return g
}

func sampleRecord() business.Record {
	return business.Record{
		ID:          "biz_1",
		Name:        "Corner Cafe",
		Category:    "Coffee shop",
		Rating:      4.2,
		ReviewCount: 120,
		Address:     "1 Main St",
		Phone:       "555-0100",
		Reviews: []business.Review{
			business.NewReview("Ann", 5, "a week ago", "Lovely staff"),
			business.NewReview("Bob", 1, "2 days ago", "Waited 30 minutes"),
			business.NewReview("Cy", 3, "today", "Fine"),
		},
	}
}

func TestNewGeneratorValidates(t *testing.T) {
	t.Parallel()

	_, err := NewGenerator(Config{})
	require.Error(t, err)
	_, err = NewGenerator(Config{Clock: fakeClock{}, IDs: fakeIDs{}, Variant: "vibes"})
	require.Error(t, err)
}

func TestGenerateSanitizesMalformedTask(t *testing.T) {
	t.Parallel()

	c := &fakeCompleter{reply: `{"tasks":[{"priority":"URGENT!!","category":"bogus","actions":"not-an-array"}]}`}
	profile, err := newGenerator(t, c, VariantMetric).Generate(context.Background(), sampleRecord())
	require.NoError(t, err)

	require.Len(t, profile.Tasks, 1)
	task := profile.Tasks[0]
	require.Equal(t, PriorityMedium, task.Priority)
	require.Equal(t, CategoryOperations, task.Category)
	require.Equal(t, []string{}, task.Actions)
	require.Equal(t, []string{}, task.Evidence)
	require.Equal(t, StatusPending, task.Status)
	require.Equal(t, "task-aaaaaa", task.ID)
	require.Equal(t, defaultTitle, task.Title)
	require.Equal(t, 50, profile.SentimentScore)
	require.Equal(t, "biz_1", profile.Business.ID)
	require.Equal(t, fixedNow, profile.AnalyzedAt)
}

func TestGenerateTasksAlwaysValid(t *testing.T) {
	t.Parallel()

	replies := []string{
		`{"tasks":[{"priority":"high","status":"completed"}]}`,
		`{"tasks":[{"priority":7,"status":null},{"priority":["low"]}]}`,
		`{"tasks":[{},{"priority":"LOW"},"not an object"]}`,
		`{"tasks":"nope","sentiment_score":"90"}`,
		"```json\n{\"tasks\":[{\"priority\":\"critical\"}]}\n```",
	}
	valid := map[Priority]bool{PriorityCritical: true, PriorityHigh: true, PriorityMedium: true, PriorityLow: true}
	for _, reply := range replies {
		t.Run(reply, func(t *testing.T) {
			t.Parallel()

			profile, err := newGenerator(t, &fakeCompleter{reply: reply}, VariantMetric).Generate(context.Background(), sampleRecord())
			require.NoError(t, err)
			require.NotNil(t, profile.Tasks)
			for _, task := range profile.Tasks {
				require.True(t, valid[task.Priority], "priority %q", task.Priority)
				require.Equal(t, StatusPending, task.Status)
			}
		})
	}
}

func TestGenerateEvalHarnessVariants(t *testing.T) {
	t.Parallel()

	reply := `{"tasks":[{"eval_harness":[
		{"type":"percentage","target":90},
		{"type":"contains_keyword","expected":"sorry"},
		{"type":"made_up","metric":""}
	]}],"sentiment_score":140}`

	tests := []struct {
		variant HarnessVariant
		want    []string
	}{
		{VariantMetric, []string{"percentage", "boolean", "boolean"}},
		{VariantJudge, []string{"llm_judge", "contains_keyword", "llm_judge"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.variant), func(t *testing.T) {
			t.Parallel()

			c := &fakeCompleter{reply: reply}
			profile, err := newGenerator(t, c, tt.variant).Generate(context.Background(), sampleRecord())
			require.NoError(t, err)
			require.Equal(t, 100, profile.SentimentScore)

			harness := profile.Tasks[0].EvalHarness
			require.Len(t, harness, 3)
			for i, want := range tt.want {
				require.Equal(t, want, harness[i].Type)
			}
			require.Equal(t, "metric", harness[2].Metric)
			require.NotNil(t, harness[0].Target)
			require.InDelta(t, 90, *harness[0].Target, 0.001)
			require.Equal(t, "sorry", harness[1].Expected)
		})
	}
}

func TestGeneratePromptContents(t *testing.T) {
	t.Parallel()

	c := &fakeCompleter{reply: `{}`}
	g := newGenerator(t, c, VariantJudge)
	_, err := g.Generate(context.Background(), sampleRecord())
	require.NoError(t, err)

	require.Contains(t, c.user, `[5★ Ann, a week ago]: "Lovely staff"`)
	require.Contains(t, c.user, "(1 positive, 1 negative)")
	require.Contains(t, c.user, "Phone: 555-0100")
	require.NotContains(t, c.user, "Website:")
	require.Contains(t, c.system, "llm_judge")

	empty := sampleRecord()
	empty.Reviews = nil
	_, err = g.Generate(context.Background(), empty)
	require.NoError(t, err)
	require.Contains(t, c.user, noReviewsInstruction)
}

func TestGenerateErrors(t *testing.T) {
	t.Parallel()

	_, err := newGenerator(t, nil, VariantMetric).Generate(context.Background(), sampleRecord())
	require.ErrorIs(t, err, ErrNotConfigured)

	_, err = newGenerator(t, &fakeCompleter{reply: "I cannot help with that"}, VariantMetric).Generate(context.Background(), sampleRecord())
	require.ErrorIs(t, err, ErrMalformedResponse)

	_, err = newGenerator(t, &fakeCompleter{reply: "null"}, VariantMetric).Generate(context.Background(), sampleRecord())
	require.ErrorIs(t, err, ErrMalformedResponse)
}

func TestProfileOrMockFallsBack(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		completer Completer
	}{
		{"unconfigured", nil},
		{"llm error", &fakeCompleter{err: errors.New("429")}},
		{"non json", &fakeCompleter{reply: "<html>"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := sampleRecord()
			profile := newGenerator(t, tt.completer, VariantMetric).ProfileOrMock(context.Background(), rec, "sess_1", "https://replay/sess_1")
			require.True(t, profile.MockAnalysis)
			require.Equal(t, rec.ID, profile.Business.ID)
			require.NotEmpty(t, profile.Tasks)
			require.Equal(t, "sess_1", profile.RemoteSessionID)
			require.Equal(t, "https://replay/sess_1", profile.RemoteSessionURL)
			require.Equal(t, []string{"Waited 30 minutes"}, profile.Tasks[0].Evidence)
			for _, task := range profile.Tasks {
				require.Equal(t, StatusPending, task.Status)
			}
		})
	}
}

func TestProfileOrMockSuccess(t *testing.T) {
	t.Parallel()

	c := &fakeCompleter{reply: `{"tasks":[{"id":"t1","title":"Fix it","priority":"high"}],"summary":"ok","top_issue":"waits","sentiment_score":72.6}`}
	profile := newGenerator(t, c, VariantMetric).ProfileOrMock(context.Background(), sampleRecord(), "", "")
	require.False(t, profile.MockAnalysis)
	require.Equal(t, "t1", profile.Tasks[0].ID)
	require.Equal(t, 73, profile.SentimentScore)
	require.Equal(t, "waits", profile.TopIssue)
}

func TestAnalyzeWorkflowsSanitizes(t *testing.T) {
	t.Parallel()

	reply := `{
		"pain_points":[{"issue":"long_waits","frequency":0,"severity":"apocalyptic","example_quotes":["a","b","c","d"]}],
		"strengths":[{"label":"Coffee"}],
		"unanswered_questions":"none",
		"suggested_workflows":[
			{"name":"Responder","tools_used":["browser","teleport","sms"],"confidence":3,"user_facing":"yes"},
			{"tools_used":"llm","confidence":-1,"eval_metrics":[{"type":"vibes"}]}
		]
	}`
	out, err := newGenerator(t, &fakeCompleter{reply: reply}, VariantMetric).AnalyzeWorkflows(context.Background(), sampleRecord())
	require.NoError(t, err)

	require.Equal(t, "biz_1", out.BusinessID)
	require.Equal(t, "Coffee shop", out.BusinessType)
	require.Equal(t, []string{}, out.UnansweredQuestions)

	pp := out.PainPoints[0]
	require.Equal(t, "long_waits", pp.Label)
	require.Equal(t, 1, pp.Frequency)
	require.Equal(t, "medium", pp.Severity)
	require.Len(t, pp.ExampleQuotes, 3)
	require.Equal(t, 1, out.Strengths[0].Mentions)

	first, second := out.Workflows[0], out.Workflows[1]
	require.Equal(t, []string{"browser", "sms"}, first.ToolsUsed)
	require.InDelta(t, 1.0, first.Confidence, 0.0001)
	require.True(t, first.UserFacing)
	require.Equal(t, defaultTrigger, first.Trigger)
	require.Equal(t, StatusPending, first.Status)

	require.Equal(t, "wf-1", second.ID)
	require.Equal(t, defaultWorkflowName, second.Name)
	require.Equal(t, []string{"llm"}, second.ToolsUsed)
	require.InDelta(t, 0.0, second.Confidence, 0.0001)
	require.Equal(t, "boolean", second.EvalMetrics[0].Type)
}

func TestWorkflowsOrMock(t *testing.T) {
	t.Parallel()

	out := newGenerator(t, &fakeCompleter{err: errors.New("down")}, VariantMetric).WorkflowsOrMock(context.Background(), sampleRecord())
	require.True(t, out.MockAnalysis)
	require.Equal(t, "biz_1", out.BusinessID)
	require.NotEmpty(t, out.Workflows)
}

type blockingCompleter struct{}

func (blockingCompleter) Complete(ctx context.Context, _, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestGenerateHonorsTimeout(t *testing.T) {
	t.Parallel()

	g, err := NewGenerator(Config{
		Completer: blockingCompleter{},
		Clock:     fakeClock{now: fixedNow},
		IDs:       fakeIDs{},
		Timeout:   10 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), sampleRecord())
	require.ErrorIs(t, err, context.DeadlineExceeded)

	profile := g.ProfileOrMock(context.Background(), sampleRecord(), "", "")
	require.True(t, profile.MockAnalysis)
}

type seqIDs struct{ n int }

func (s *seqIDs) NewShortID(int) string {
	s.n++
	return "task-" + strings.Repeat("x", s.n)
}

func TestGenerateAssignsUniqueTaskIDs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		ids   ShortIDGenerator
		reply string
		want  []string
	}{
		{
			name:  "repeated model id",
			ids:   &seqIDs{},
			reply: `{"tasks":[{"id":"task-1","title":"A"},{"id":"task-1","title":"B"},{"id":"task-2"}]}`,
			want:  []string{"task-1", "task-x", "task-2"},
		},
		{
			name:  "minted id collides with model id",
			ids:   &seqIDs{},
			reply: `{"tasks":[{"id":"task-x"},{}]}`,
			want:  []string{"task-x", "task-xx"},
		},
		{
			name:  "generator keeps returning the same id",
			ids:   fakeIDs{},
			reply: `{"tasks":[{},{},{}]}`,
			want:  []string{"task-aaaaaa", "task-aaaaaa-2", "task-aaaaaa-3"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g, err := NewGenerator(Config{Completer: &fakeCompleter{reply: tt.reply}, Clock: fakeClock{now: fixedNow}, IDs: tt.ids})
			require.NoError(t, err)
			profile, err := g.Generate(context.Background(), sampleRecord())
			require.NoError(t, err)

			var got []string
			for _, task := range profile.Tasks {
				got = append(got, task.ID)
			}
			require.Equal(t, tt.want, got)
		})
	}
}

func TestAnalyzeWorkflowsAssignsUniqueIDs(t *testing.T) {
	t.Parallel()

	reply := `{"suggested_workflows":[{"id":"wf-1"},{},{"id":"wf-1"},{"id":"ops"}]}`
	out, err := newGenerator(t, &fakeCompleter{reply: reply}, VariantMetric).AnalyzeWorkflows(context.Background(), sampleRecord())
	require.NoError(t, err)

	var got []string
	for _, wf := range out.Workflows {
		got = append(got, wf.ID)
	}
	require.Equal(t, []string{"wf-1", "wf-2", "wf-3", "ops"}, got)
}

func TestAnalyzeWorkflowsClampsHugeCounts(t *testing.T) {
	t.Parallel()

	reply := `{"pain_points":[{"issue":"waits","frequency":1e300}],"strengths":[{"label":"Coffee","mentions":9.9e18}]}`
	out, err := newGenerator(t, &fakeCompleter{reply: reply}, VariantMetric).AnalyzeWorkflows(context.Background(), sampleRecord())
	require.NoError(t, err)
	require.Equal(t, maxCount, out.PainPoints[0].Frequency)
	require.Equal(t, maxCount, out.Strengths[0].Mentions)
}

func TestMockProfileFollowsHarnessVariant(t *testing.T) {
	t.Parallel()

	for _, variant := range []HarnessVariant{VariantMetric, VariantJudge} {
		t.Run(string(variant), func(t *testing.T) {
			t.Parallel()

			allowed, _ := harnessTypes(variant)
			profile := newGenerator(t, &fakeCompleter{err: errors.New("down")}, variant).
				ProfileOrMock(context.Background(), sampleRecord(), "", "")
			require.True(t, profile.MockAnalysis)
			for _, task := range profile.Tasks {
				for _, h := range task.EvalHarness {
					require.Contains(t, allowed, h.Type, "task %s", task.ID)
				}
			}
		})
	}
}
