package service

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcos-assessment-server/internal/cache"
	"github.com/pcos-assessment-server/internal/domain"
	"github.com/pcos-assessment-server/internal/tracker"
)

type failingCache struct {
	gets, sets int
}

func (f *failingCache) Get(context.Context, string) (*domain.AssessmentResult, bool, error) {
	f.gets++
	return nil, false, errors.New("cache down")
}

func (f *failingCache) Set(context.Context, string, *domain.AssessmentResult) error {
	f.sets++
	return errors.New("cache down")
}

func (f *failingCache) Ping(context.Context) error { return errors.New("cache down") }
func (f *failingCache) Close() error               { return nil }

func newTestService(t *testing.T) (*AssessmentService, *cache.MemoryCache, *tracker.SQLiteStore) {
	t.Helper()
	scorer := newTestScorer(t)

	memCache, err := cache.NewMemoryCache(100, 0)
	require.NoError(t, err)

	store, err := tracker.NewSQLiteStore(filepath.Join(t.TempDir(), "assessments.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewAssessmentService(logger, scorer, memCache, store), memCache, store
}

func pcosInput() domain.AssessmentInput {
	return domain.AssessmentInput{
		Symptoms:   domain.SymptomInput{PeriodsPerYear: 5, CycleLengthDays: 50, Hirsutism: true},
		History:    domain.PatientHistory{BMI: 33, InsulinResistance: true},
		Ultrasound: domain.PositiveUltrasound(20, "13 ml"),
	}
}

func TestAssessmentService_EvaluateUsesCache(t *testing.T) {
	svc, memCache, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Evaluate(ctx, pcosInput())
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, svc.Catalog().Version(), first.CatalogVersion)
	assert.Equal(t, 1, memCache.Len())

	second, err := svc.Evaluate(ctx, pcosInput())
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Result, second.Result)

	other := pcosInput()
	other.Ultrasound = domain.NegativeUltrasound()
	third, err := svc.Evaluate(ctx, other)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, 2, third.Result.RotterdamScore)
}

func TestAssessmentService_EvaluateToleratesCacheFailures(t *testing.T) {
	logger, hook := test.NewNullLogger()
	fc := &failingCache{}
	svc := NewAssessmentService(logger, newTestScorer(t), fc, nil)

	res, err := svc.Evaluate(context.Background(), pcosInput())
	require.NoError(t, err)
	assert.Equal(t, domain.DiagnosisPCOS, res.Result.Diagnosis)
	assert.Equal(t, 1, fc.gets)
	assert.Equal(t, 1, fc.sets)
	assert.Len(t, hook.AllEntries(), 2)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestAssessmentService_EvaluateRejectsInvalidInput(t *testing.T) {
	svc, memCache, _ := newTestService(t)

	input := pcosInput()
	input.History.BMI = -1
	_, err := svc.Evaluate(context.Background(), input)

	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "bmi", vErr.Field)
	assert.Equal(t, 0, memCache.Len())
}

func TestAssessmentService_AssessAndManageRecords(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	rec, err := svc.Assess(ctx, &domain.AssessmentRequest{PatientName: "  Jane Doe ", Age: 31, Input: pcosInput()})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "Jane Doe", rec.PatientName)
	assert.Equal(t, domain.DiagnosisPCOS, rec.Result.Diagnosis)

	_, err = svc.Assess(ctx, &domain.AssessmentRequest{PatientName: "Mary", Input: domain.AssessmentInput{
		Symptoms: domain.SymptomInput{PeriodsPerYear: 12, CycleLengthDays: 28},
		History:  domain.PatientHistory{BMI: 21},
	}})
	require.NoError(t, err)

	got, err := svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Result, got.Result)

	list, err := svc.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.Total)
	assert.Equal(t, int64(1), summary.PCOSDiagnosed)

	var buf bytes.Buffer
	require.NoError(t, svc.Export(ctx, &buf))
	assert.Contains(t, buf.String(), rec.ID)

	require.NoError(t, svc.Delete(ctx, rec.ID))
	_, err = svc.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, rec.ID), domain.ErrNotFound)
}

func TestAssessmentService_AssessValidation(t *testing.T) {
	svc, _, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.Assess(ctx, nil)
	assert.Error(t, err)

	_, err = svc.Assess(ctx, &domain.AssessmentRequest{PatientName: "", Input: pcosInput()})
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "patient_name", vErr.Field)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	_, err = svc.List(ctx, -1, 0)
	assert.ErrorAs(t, err, &vErr)
	_, err = svc.Get(ctx, " ")
	assert.ErrorAs(t, err, &vErr)
}

func TestAssessmentService_WithoutStore(t *testing.T) {
	svc := NewAssessmentService(nil, newTestScorer(t), nil, nil)
	ctx := context.Background()

	assert.False(t, svc.HasStore())

	_, err := svc.Evaluate(ctx, pcosInput())
	require.NoError(t, err)

	_, err = svc.Assess(ctx, &domain.AssessmentRequest{PatientName: "Jane", Input: pcosInput()})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	_, err = svc.Summary(ctx)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	_, err = svc.List(ctx, 10, 0)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, svc.Export(ctx, &bytes.Buffer{}), ErrStoreUnavailable)
}
