package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/bmh-lims/lims/internal/testutil"
	"github.com/bmh-lims/lims/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolver(t *testing.T, store *testutil.MemStore) *Resolver {
	t.Helper()
	return New(Config{Labs: store, Projects: store, Logger: testutil.NewTestLogger(t)})
}

func TestDistinctNames(t *testing.T) {
	tbl := core.NewTable("submitting_lab")
	tbl.Append(" LabB ")
	tbl.Append("LabA")
	tbl.Append("LabB")
	tbl.Append("")
	tbl.Append(nil)

	assert.Equal(t, []string{"LabA", "LabB"}, DistinctNames(tbl, "submitting_lab"))
	assert.Empty(t, DistinctNames(tbl, "bmh_project"))
}

func TestResolver_PrepareBatchesLookups(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemStore()
	labA := store.AddLab("LabA")
	store.AddProject("ProjA", labA)

	r := newResolver(t, store)
	require.NoError(t, r.Prepare(ctx, []string{"LabA", "Ghost"}, []string{"ProjA", "Nope"}))

	for i := 0; i < 5; i++ {
		lab, err := r.Lab(ctx, "LabA")
		require.NoError(t, err)
		assert.Equal(t, labA.ID, lab.ID)

		_, err = r.Lab(ctx, "Ghost")
		var labErr *core.UnresolvedLabError
		require.True(t, errors.As(err, &labErr))
		assert.Equal(t, "Ghost", labErr.Name)

		_, err = r.Project(ctx, core.ColSubmitterProject, "Nope")
		var projErr *core.UnresolvedProjectError
		require.True(t, errors.As(err, &projErr))
		assert.Equal(t, core.ColSubmitterProject, projErr.Column)
	}

	assert.Equal(t, 1, store.Calls("ListLabsByNames"))
	assert.Equal(t, 1, store.Calls("ListProjectsByNames"))
	assert.Zero(t, store.Calls("FindLabByName"), "prepared names never hit the store again")
	assert.Zero(t, store.Calls("FindProjectByName"))

	// A second Prepare with already-cached names is free.
	require.NoError(t, r.Prepare(ctx, []string{"LabA"}, nil))
	assert.Equal(t, 1, store.Calls("ListLabsByNames"))
}

func TestResolver_FallsBackToSingleLookups(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemStore()
	store.AddLab("LabA")

	r := newResolver(t, store)
	_, err := r.Lab(ctx, "LabA")
	require.NoError(t, err)
	_, err = r.Lab(ctx, "LabA")
	require.NoError(t, err)
	assert.Equal(t, 1, store.Calls("FindLabByName"))
}

func TestResolver_Project(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemStore()
	store.AddProject("ProjA", nil)
	r := newResolver(t, store)

	p, err := r.Project(ctx, core.ColBMHProject, "")
	require.NoError(t, err, "absent project is not an unresolved project")
	assert.Nil(t, p)

	p, err = r.Project(ctx, core.ColBMHProject, "ProjA")
	require.NoError(t, err)
	assert.Equal(t, "ProjA", p.Name)
}

func TestResolver_EmptyLabName(t *testing.T) {
	r := newResolver(t, testutil.NewMemStore())
	_, err := r.Lab(context.Background(), "")
	var labErr *core.UnresolvedLabError
	assert.True(t, errors.As(err, &labErr))
}

func TestResolver_StoreFailure(t *testing.T) {
	store := testutil.NewMemStore()
	store.FailWith["ListLabsByNames"] = errors.New("connection refused")
	r := newResolver(t, store)

	err := r.Prepare(context.Background(), []string{"LabA"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.False(t, core.IsStructural(err))
}

func TestCheckSubmission(t *testing.T) {
	labA := &core.Lab{ID: 1, Name: "LabA"}
	labAID := labA.ID
	otherID := int64(2)
	own := &core.Project{ID: 10, Name: "ProjA", SupportingLabID: &labAID}
	foreign := &core.Project{ID: 11, Name: "ProjB", SupportingLabID: &otherID}

	tests := []struct {
		name         string
		existing     *core.Project
		existingName string
		newProject   string
		wantProblems []string
	}{
		{"existing project of lab", own, "ProjA", "", nil},
		{"new project only", nil, "", "Fresh", nil},
		{"both given", own, "ProjA", "Fresh", []string{MsgBothProjects}},
		{"neither given", nil, "", "", []string{MsgNoProject}},
		{"project of another lab", foreign, "ProjB", "", []string{MsgProjectLabMismatch}},
		{"both given and foreign", foreign, "ProjB", "Fresh", []string{MsgBothProjects, MsgProjectLabMismatch}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckSubmission(labA, tt.existing, tt.existingName, tt.newProject)
			if tt.wantProblems == nil {
				assert.NoError(t, err)
				return
			}
			var se *core.SubmissionError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.wantProblems, se.Problems)
		})
	}
}

func TestResolver_ResolveSubmission(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemStore()
	labA := store.AddLab("LabA")
	labB := store.AddLab("LabB")
	store.AddProject("ProjA", labA)
	store.AddProject("ProjB", labB)

	t.Run("valid existing project", func(t *testing.T) {
		res, err := newResolver(t, store).ResolveSubmission(ctx, Submission{Lab: " LabA ", ExistingProject: "ProjA"})
		require.NoError(t, err)
		assert.Equal(t, labA.ID, res.Lab.ID)
		assert.Equal(t, "ProjA", res.Project.Name)
	})

	t.Run("new project", func(t *testing.T) {
		res, err := newResolver(t, store).ResolveSubmission(ctx, Submission{Lab: "LabB", NewProject: "Fresh"})
		require.NoError(t, err)
		assert.Nil(t, res.Project)
		assert.Equal(t, "Fresh", res.NewProject)
	})

	t.Run("problems are combined", func(t *testing.T) {
		_, err := newResolver(t, store).ResolveSubmission(ctx, Submission{Lab: "Nowhere", ExistingProject: "Ghost", NewProject: "Fresh"})
		var se *core.SubmissionError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, []string{
			"Lab with name 'Nowhere' does not exist.",
			"Project with name 'Ghost' does not exist.",
			MsgBothProjects,
		}, se.Problems)
	})

	t.Run("project of another lab", func(t *testing.T) {
		_, err := newResolver(t, store).ResolveSubmission(ctx, Submission{Lab: "LabA", ExistingProject: "ProjB"})
		var se *core.SubmissionError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, []string{MsgProjectLabMismatch}, se.Problems)
	})
}
