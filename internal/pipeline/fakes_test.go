package pipeline_test

import (
	"context"
	"time"

	"github.com/rancher/delint-action/internal/git"
	"github.com/rancher/delint-action/internal/lint"
	"github.com/rancher/delint-action/internal/notify"
	"github.com/rancher/delint-action/internal/pipeline"
)

type fakeWorkspace struct {
	dir   string
	files map[string]bool
	dirty bool

	isCleanErr error
	createErr  error
	commitErr  error
	pushErr    error

	calls    []string
	branches []string
	commits  []string
	pushes   int
	cleaned  bool
}

func (w *fakeWorkspace) Dir() string { return w.dir }

func (w *fakeWorkspace) FileExists(rel string) bool { return w.files[rel] }

func (w *fakeWorkspace) IsClean(context.Context) (bool, error) {
	w.calls = append(w.calls, "is_clean")
	if w.isCleanErr != nil {
		return false, w.isCleanErr
	}
	return !w.dirty, nil
}

func (w *fakeWorkspace) CurrentBranch(context.Context) (string, error) { return "main", nil }

func (w *fakeWorkspace) CreateBranch(_ context.Context, name string) error {
	w.calls = append(w.calls, "create_branch")
	if w.createErr != nil {
		return w.createErr
	}
	w.branches = append(w.branches, name)
	return nil
}

func (w *fakeWorkspace) Commit(_ context.Context, message string) error {
	w.calls = append(w.calls, "commit")
	if w.commitErr != nil {
		return w.commitErr
	}
	w.commits = append(w.commits, message)
	w.dirty = false
	return nil
}

func (w *fakeWorkspace) Push(context.Context) error {
	w.calls = append(w.calls, "push")
	if w.pushErr != nil {
		return w.pushErr
	}
	w.pushes++
	return nil
}

func (w *fakeWorkspace) Cleanup(context.Context) error {
	w.cleaned = true
	return nil
}

type fakeExecutor struct {
	ws       *fakeWorkspace
	err      error
	prepared []string
}

func (e *fakeExecutor) Prepare(_ context.Context, owner, repo, branch string) (git.Workspace, error) {
	e.prepared = append(e.prepared, owner+"/"+repo+"@"+branch)
	if e.err != nil {
		return nil, e.err
	}
	return e.ws, nil
}

type fakeRunner struct {
	outcome lint.Outcome
	err     error
	// dirties marks the workspace as modified, as an autofix would.
	dirties *fakeWorkspace
	dirs    []string
}

func (r *fakeRunner) Run(_ context.Context, dir string) (lint.Outcome, error) {
	r.dirs = append(r.dirs, dir)
	if r.err != nil {
		return lint.Outcome{}, r.err
	}
	if r.dirties != nil {
		r.dirties.dirty = true
	}
	return r.outcome, nil
}

type statusCall struct {
	owner, repo, sha string
	state            string
	description      string
	exitCode         int
}

type fakeReporter struct {
	err   error
	calls []statusCall
}

func (r *fakeReporter) Report(_ context.Context, owner, repo, sha string, exitCode int) error {
	state := "success"
	if exitCode != 0 {
		state = "failure"
	}
	r.calls = append(r.calls, statusCall{owner: owner, repo: repo, sha: sha, state: state, exitCode: exitCode})
	return r.err
}

func (r *fakeReporter) Post(_ context.Context, owner, repo, sha, state, description string) error {
	r.calls = append(r.calls, statusCall{owner: owner, repo: repo, sha: sha, state: state, description: description})
	return r.err
}

type sentMessage struct {
	recipient string
	message   notify.Message
}

type fakeMessenger struct {
	err  error
	sent []sentMessage
}

func (m *fakeMessenger) Send(_ context.Context, recipient string, msg notify.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMessage{recipient: recipient, message: msg})
	return nil
}

type observedRun struct {
	stage string
	code  int
}

type fakeObserver struct {
	stages []string
	runs   []observedRun
}

func (o *fakeObserver) ObserveStage(stage string, _ time.Duration, _ error) {
	o.stages = append(o.stages, stage)
}

func (o *fakeObserver) ObserveRun(stage string, code int, _ time.Duration) {
	o.runs = append(o.runs, observedRun{stage: stage, code: code})
}

func stringPtr(s string) *string { return &s }

var _ pipeline.StatusReporter = (*fakeReporter)(nil)
