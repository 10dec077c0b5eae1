package service

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/noah-isme/feedback-api/internal/dto"
	"github.com/noah-isme/feedback-api/internal/models"
	"github.com/noah-isme/feedback-api/internal/repository"
)

// racingFeedbackRepo hides existing rows from the pre-check so the insert hits the unique index.
type racingFeedbackRepo struct {
	repository.FeedbackRepository
}

func (r racingFeedbackRepo) ExistsForStudent(ctx context.Context, formID, studentID string) (bool, error) {
	return false, nil
}

func createTestForm(t *testing.T, deps testServices, owner string) dto.FormResponse {
	t.Helper()
	forms := NewFormService(deps.forms, deps.feedback, deps.validate, nil, testLinks, testLogger())
	form, err := forms.Create(context.Background(), owner, validFormRequest("Course Review"))
	require.NoError(t, err)
	return form
}

func TestSubjectAverages(t *testing.T) {
	averages := SubjectAverages(models.Ratings{
		"Math":    {"Clarity": 4, "Pace": 2},
		"Physics": {"Clarity": 5},
		"Art":     {},
	})

	require.Len(t, averages, 2)
	require.InDelta(t, 3.0, averages["Math"], 1e-9)
	require.InDelta(t, 5.0, averages["Physics"], 1e-9)
	_, ok := averages["Art"]
	require.False(t, ok)
}

func TestSubjectAveragesLargeRatings(t *testing.T) {
	averages := SubjectAverages(models.Ratings{
		"Math": {"Clarity": math.MaxInt, "Pace": math.MaxInt},
	})

	require.InEpsilon(t, float64(math.MaxInt), averages["Math"], 1e-9)
}

func TestSummarizeAveragesIsMeanOfMeans(t *testing.T) {
	items := []models.StudentFeedback{
		{Averages: datatypes.NewJSONType(models.SubjectAverages{"Physics": 4.0, "Math": 1.0})},
		{Averages: datatypes.NewJSONType(models.SubjectAverages{"Physics": 2.0})},
	}

	summary := SummarizeAverages(items)
	require.InDelta(t, 3.0, summary["Physics"], 1e-9)
	require.InDelta(t, 1.0, summary["Math"], 1e-9)
	require.Empty(t, SummarizeAverages(nil))
}

func TestFeedbackServiceSubmitComputesAverages(t *testing.T) {
	deps := setupServiceDB(t)
	form := createTestForm(t, deps, "owner-1")
	svc := NewFeedbackService(deps.forms, deps.feedback, deps.validate, nil, testLogger())

	resp, err := svc.Submit(context.Background(), dto.FeedbackCreateRequest{
		FormID:      form.ID,
		StudentID:   "student-1",
		StudentName: "<b>Jane</b>",
		Ratings:     map[string]map[string]int{"Math": {"Clarity": 4, "Pace": 2}, "Empty": {}},
		Comments:    "Great course<script>alert(1)</script>",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.ID)
	require.False(t, resp.SubmittedAt.IsZero())
	require.InDelta(t, 3.0, resp.Averages["Math"], 1e-9)
	require.NotContains(t, resp.Averages, "Empty")
	require.Equal(t, "Jane", resp.StudentName)
	require.Equal(t, "Great course", resp.Comments)

	stored, err := deps.feedback.ListByForm(context.Background(), form.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.InDelta(t, 3.0, stored[0].Averages.Data()["Math"], 1e-9)
}

func TestFeedbackServiceSubmitKeepsPlainText(t *testing.T) {
	deps := setupServiceDB(t)
	form := createTestForm(t, deps, "owner-1")
	svc := NewFeedbackService(deps.forms, deps.feedback, deps.validate, nil, testLogger())
	ctx := context.Background()

	resp, err := svc.Submit(ctx, dto.FeedbackCreateRequest{
		FormID:      form.ID,
		StudentID:   "student-1",
		StudentName: "O'Brien & Sons",
		Ratings:     map[string]map[string]int{"Math": {"Clarity": 4}},
		Comments:    `Pace was < 3 weeks & "clear" <3`,
	})
	require.NoError(t, err)
	require.Equal(t, "O'Brien & Sons", resp.StudentName)
	require.Equal(t, `Pace was < 3 weeks & "clear" <3`, resp.Comments)

	stored, err := deps.feedback.ListByForm(ctx, form.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, "O'Brien & Sons", stored[0].StudentName)
	require.Equal(t, `Pace was < 3 weeks & "clear" <3`, stored[0].Comments)
}

func TestFeedbackServiceSubmitUnknownOrInactiveForm(t *testing.T) {
	deps := setupServiceDB(t)
	form := createTestForm(t, deps, "owner-1")
	svc := NewFeedbackService(deps.forms, deps.feedback, deps.validate, nil, testLogger())
	ctx := context.Background()

	req := dto.FeedbackCreateRequest{FormID: "missing", StudentID: "s-1", Ratings: map[string]map[string]int{"Math": {"Clarity": 3}}}
	_, err := svc.Submit(ctx, req)
	require.ErrorIs(t, err, ErrFormNotFound)

	require.NoError(t, deps.forms.Deactivate(ctx, form.ID, "owner-1"))
	req.FormID = form.ID
	_, err = svc.Submit(ctx, req)
	require.ErrorIs(t, err, ErrFormNotFound)
}

func TestFeedbackServiceSubmitValidation(t *testing.T) {
	deps := setupServiceDB(t)
	svc := NewFeedbackService(deps.forms, deps.feedback, deps.validate, nil, testLogger())

	_, err := svc.Submit(context.Background(), dto.FeedbackCreateRequest{FormID: "f", StudentID: "  "})
	var validationErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)
}

func TestFeedbackServiceRejectsDuplicateSubmission(t *testing.T) {
	deps := setupServiceDB(t)
	form := createTestForm(t, deps, "owner-1")
	svc := NewFeedbackService(deps.forms, deps.feedback, deps.validate, nil, testLogger())
	ctx := context.Background()

	req := dto.FeedbackCreateRequest{FormID: form.ID, StudentID: "s-1", Ratings: map[string]map[string]int{"Math": {"Clarity": 3}}}
	_, err := svc.Submit(ctx, req)
	require.NoError(t, err)

	_, err = svc.Submit(ctx, req)
	require.ErrorIs(t, err, ErrDuplicateSubmission)

	count, err := deps.feedback.CountByForm(ctx, form.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestFeedbackServiceTranslatesConstraintViolation(t *testing.T) {
	deps := setupServiceDB(t)
	form := createTestForm(t, deps, "owner-1")
	svc := NewFeedbackService(deps.forms, racingFeedbackRepo{deps.feedback}, deps.validate, nil, testLogger())
	ctx := context.Background()

	req := dto.FeedbackCreateRequest{FormID: form.ID, StudentID: "s-1", Ratings: map[string]map[string]int{"Math": {"Clarity": 3}}}
	_, err := svc.Submit(ctx, req)
	require.NoError(t, err)

	_, err = svc.Submit(ctx, req)
	require.ErrorIs(t, err, ErrDuplicateSubmission)
}

func TestFeedbackServiceConcurrentDuplicates(t *testing.T) {
	deps := setupServiceDB(t)
	form := createTestForm(t, deps, "owner-1")
	svc := NewFeedbackService(deps.forms, racingFeedbackRepo{deps.feedback}, deps.validate, nil, testLogger())

	const attempts = 8
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		accepted   int
		duplicates int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Submit(context.Background(), dto.FeedbackCreateRequest{
				FormID:    form.ID,
				StudentID: "same-student",
				Ratings:   map[string]map[string]int{"Math": {"Clarity": 5}},
			})
			mu.Lock()
			defer mu.Unlock()
			switch err {
			case nil:
				accepted++
			case ErrDuplicateSubmission:
				duplicates++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, attempts-1, duplicates)

	count, err := deps.feedback.CountByForm(context.Background(), form.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestFeedbackServiceSummary(t *testing.T) {
	deps := setupServiceDB(t)
	form := createTestForm(t, deps, "owner-1")
	svc := NewFeedbackService(deps.forms, deps.feedback, deps.validate, nil, testLogger())
	ctx := context.Background()

	submissions := []map[string]map[string]int{
		{"Physics": {"Clarity": 5, "Pace": 3}},
		{"Physics": {"Clarity": 2}, "Math": {"Clarity": 1, "Pace": 2}},
	}
	for i, ratings := range submissions {
		_, err := svc.Submit(ctx, dto.FeedbackCreateRequest{FormID: form.ID, StudentID: []string{"a", "b"}[i], Ratings: ratings})
		require.NoError(t, err)
	}

	summary, err := svc.Summary(ctx, "owner-1", form.ID)
	require.NoError(t, err)
	require.Equal(t, form.ID, summary.FormID)
	require.Equal(t, form.Title, summary.FormTitle)
	require.Equal(t, 2, summary.TotalResponses)
	require.Len(t, summary.Feedbacks, 2)
	require.InDelta(t, 3.0, summary.AverageRatingsPerSubject["Physics"], 1e-9)
	require.InDelta(t, 1.5, summary.AverageRatingsPerSubject["Math"], 1e-9)

	_, err = svc.Summary(ctx, "owner-2", form.ID)
	require.ErrorIs(t, err, ErrFormNotFound)

	require.NoError(t, deps.forms.Deactivate(ctx, form.ID, "owner-1"))
	summary, err = svc.Summary(ctx, "owner-1", form.ID)
	require.NoError(t, err)
	require.Equal(t, 2, summary.TotalResponses)
}

func TestFeedbackServiceSummaryEmptyForm(t *testing.T) {
	deps := setupServiceDB(t)
	form := createTestForm(t, deps, "owner-1")
	svc := NewFeedbackService(deps.forms, deps.feedback, deps.validate, nil, testLogger())

	summary, err := svc.Summary(context.Background(), "owner-1", form.ID)
	require.NoError(t, err)
	require.Zero(t, summary.TotalResponses)
	require.Empty(t, summary.AverageRatingsPerSubject)
	require.NotNil(t, summary.Feedbacks)
}

func newTestSummaryCache(t *testing.T) (*SummaryCache, *miniredis.Miniredis) {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewSummaryCache(client, time.Minute, testLogger()), server
}

func TestFeedbackServiceSummaryCache(t *testing.T) {
	cache, server := newTestSummaryCache(t)
	deps := setupServiceDB(t)
	form := createTestForm(t, deps, "owner-1")
	svc := NewFeedbackService(deps.forms, deps.feedback, deps.validate, cache, testLogger())
	ctx := context.Background()

	_, err := svc.Submit(ctx, dto.FeedbackCreateRequest{FormID: form.ID, StudentID: "a", Ratings: map[string]map[string]int{"Math": {"Clarity": 4}}})
	require.NoError(t, err)

	first, err := svc.Summary(ctx, "owner-1", form.ID)
	require.NoError(t, err)
	require.Equal(t, 1, first.TotalResponses)

	generation, ok := cache.Generation(ctx, form.ID)
	require.True(t, ok)
	require.True(t, server.Exists(summaryCacheKey(form.ID, generation)))

	cached, ok := cache.Get(ctx, form.ID, generation)
	require.True(t, ok)
	require.Equal(t, 1, cached.TotalResponses)

	_, err = svc.Submit(ctx, dto.FeedbackCreateRequest{FormID: form.ID, StudentID: "b", Ratings: map[string]map[string]int{"Math": {"Clarity": 2}}})
	require.NoError(t, err)
	require.False(t, server.Exists(summaryCacheKey(form.ID, generation)))

	next, ok := cache.Generation(ctx, form.ID)
	require.True(t, ok)
	require.Equal(t, generation+1, next)

	second, err := svc.Summary(ctx, "owner-1", form.ID)
	require.NoError(t, err)
	require.Equal(t, 2, second.TotalResponses)
	require.InDelta(t, 3.0, second.AverageRatingsPerSubject["Math"], 1e-9)
}

// interleavingFeedbackRepo runs a hook after rows are read and before the caller continues.
type interleavingFeedbackRepo struct {
	repository.FeedbackRepository
	afterList func()
}

func (r *interleavingFeedbackRepo) ListByForm(ctx context.Context, formID string) ([]models.StudentFeedback, error) {
	items, err := r.FeedbackRepository.ListByForm(ctx, formID)
	if r.afterList != nil {
		hook := r.afterList
		r.afterList = nil
		hook()
	}
	return items, err
}

func TestFeedbackServiceSummaryIgnoresStaleComputation(t *testing.T) {
	cache, _ := newTestSummaryCache(t)
	deps := setupServiceDB(t)
	form := createTestForm(t, deps, "owner-1")
	ctx := context.Background()

	writer := NewFeedbackService(deps.forms, deps.feedback, deps.validate, cache, testLogger())
	repo := &interleavingFeedbackRepo{FeedbackRepository: deps.feedback}
	reader := NewFeedbackService(deps.forms, repo, deps.validate, cache, testLogger())

	repo.afterList = func() {
		_, err := writer.Submit(ctx, dto.FeedbackCreateRequest{FormID: form.ID, StudentID: "late", Ratings: map[string]map[string]int{"Math": {"Clarity": 5}}})
		require.NoError(t, err)
	}

	stale, err := reader.Summary(ctx, "owner-1", form.ID)
	require.NoError(t, err)
	require.Zero(t, stale.TotalResponses)

	fresh, err := reader.Summary(ctx, "owner-1", form.ID)
	require.NoError(t, err)
	require.Equal(t, 1, fresh.TotalResponses)
	require.InDelta(t, 5.0, fresh.AverageRatingsPerSubject["Math"], 1e-9)
}

func TestSummaryCacheNilIsDisabled(t *testing.T) {
	var cache *SummaryCache
	_, ok := cache.Generation(context.Background(), "form")
	require.False(t, ok)
	_, ok = cache.Get(context.Background(), "form", 0)
	require.False(t, ok)
	cache.Set(context.Background(), "form", 0, dto.FeedbackSummaryResponse{})
	cache.Invalidate(context.Background(), "form")

	disabled := NewSummaryCache(nil, 0, testLogger())
	_, ok = disabled.Generation(context.Background(), "form")
	require.False(t, ok)
}
