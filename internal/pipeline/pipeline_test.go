package pipeline_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rancher/delint-action/internal/lint"
	"github.com/rancher/delint-action/internal/notify"
	"github.com/rancher/delint-action/internal/pipeline"
)

var _ = Describe("Pipeline", func() {
	var (
		ctx       context.Context
		ws        *fakeWorkspace
		executor  *fakeExecutor
		runner    *fakeRunner
		reporter  *fakeReporter
		messenger *fakeMessenger
		observer  *fakeObserver
		push      pipeline.PushEvent
		cfg       pipeline.Config
	)

	newPipeline := func() *pipeline.Pipeline {
		dispatcher := notify.NewDispatcher(messenger, notify.WithClock(func() time.Time {
			return time.Unix(1700000000, 0)
		}))
		return pipeline.New(cfg, executor, runner, reporter,
			pipeline.WithNotifier(dispatcher),
			pipeline.WithObserver(observer),
		)
	}

	BeforeEach(func() {
		ctx = context.Background()
		ws = &fakeWorkspace{
			dir:   "/tmp/delint-widgets-123",
			files: map[string]bool{"tslint.json": true},
		}
		executor = &fakeExecutor{ws: ws}
		runner = &fakeRunner{}
		reporter = &fakeReporter{}
		messenger = &fakeMessenger{}
		observer = &fakeObserver{}
		cfg = pipeline.Config{}
		push = pipeline.PushEvent{
			Owner:     "acme",
			Repo:      "widgets",
			Branch:    "main",
			BeforeSHA: "0000001",
			After: pipeline.Commit{
				SHA:                "abc123",
				Message:            "Add widget",
				AuthorLogin:        "alice",
				AuthorChatIdentity: stringPtr("@alice"),
			},
		}
	})

	Context("when lint fails and autofix leaves changes", func() {
		BeforeEach(func() {
			runner.outcome = lint.Outcome{ExitCode: 1, Output: "/tmp/delint-widgets-123/src/file.ts:3 unused var"}
			runner.dirties = ws
		})

		It("commits, pushes, notifies and reports failure", func() {
			res := newPipeline().Run(ctx, push)

			Expect(res.Code).To(Equal(0))
			Expect(res.Err).NotTo(HaveOccurred())
			Expect(res.Stage).To(Equal(pipeline.StageDone))
			Expect(res.Committed).To(BeTrue())
			Expect(res.Notified).To(BeTrue())
			Expect(res.StatusState).To(Equal("failure"))
			Expect(res.StatusPosted).To(BeTrue())
			Expect(res.Lint).NotTo(BeNil())
			Expect(res.Lint.ExitCode).To(Equal(1))

			Expect(ws.branches).To(Equal([]string{"main"}))
			Expect(ws.commits).To(HaveLen(1))
			Expect(ws.commits[0]).To(ContainSubstring("[auto-delint]"))
			Expect(ws.pushes).To(Equal(1))
			Expect(ws.calls).To(Equal([]string{"is_clean", "create_branch", "commit", "push"}))

			Expect(messenger.sent).To(HaveLen(1))
			Expect(messenger.sent[0].recipient).To(Equal("@alice"))
			attachment := messenger.sent[0].message.Attachments[0]
			Expect(attachment.Text).To(ContainSubstring("src/file.ts:3 unused var"))
			Expect(attachment.Text).NotTo(ContainSubstring("/tmp/delint-widgets-123"))

			Expect(reporter.calls).To(HaveLen(1))
			Expect(reporter.calls[0]).To(Equal(statusCall{owner: "acme", repo: "widgets", sha: "abc123", state: "failure", exitCode: 1}))
			Expect(ws.cleaned).To(BeTrue())
		})

		It("commits onto a prefixed branch when configured", func() {
			cfg.BranchPrefix = "delint"

			res := newPipeline().Run(ctx, push)

			Expect(res.Code).To(Equal(0))
			Expect(res.Branch).To(Equal("delint/main"))
			Expect(ws.branches).To(Equal([]string{"delint/main"}))
		})
	})

	Context("when lint passes without changes", func() {
		BeforeEach(func() {
			runner.outcome = lint.Outcome{ExitCode: 0, Output: ""}
		})

		It("reports success and does nothing else", func() {
			res := newPipeline().Run(ctx, push)

			Expect(res.Code).To(Equal(0))
			Expect(res.Message).To(Equal("Linting succeeded"))
			Expect(res.Committed).To(BeFalse())
			Expect(res.Notified).To(BeFalse())
			Expect(ws.commits).To(BeEmpty())
			Expect(ws.pushes).To(Equal(0))
			Expect(messenger.sent).To(BeEmpty())
			Expect(reporter.calls).To(HaveLen(1))
			Expect(reporter.calls[0].state).To(Equal("success"))
		})
	})

	Context("when lint passes but reformats files", func() {
		BeforeEach(func() {
			runner.outcome = lint.Outcome{ExitCode: 0}
			runner.dirties = ws
		})

		It("still commits the changes and reports success", func() {
			res := newPipeline().Run(ctx, push)

			Expect(res.Code).To(Equal(0))
			Expect(res.Committed).To(BeTrue())
			Expect(res.Notified).To(BeFalse())
			Expect(reporter.calls).To(HaveLen(1))
			Expect(reporter.calls[0].state).To(Equal("success"))
		})
	})

	Context("when lint fails without changes", func() {
		BeforeEach(func() {
			runner.outcome = lint.Outcome{ExitCode: 2, Output: "src/a.ts:1 no-any"}
		})

		It("notifies without committing", func() {
			res := newPipeline().Run(ctx, push)

			Expect(res.Code).To(Equal(0))
			Expect(res.Message).To(Equal("Linting failed"))
			Expect(res.Committed).To(BeFalse())
			Expect(res.Notified).To(BeTrue())
			Expect(ws.calls).To(Equal([]string{"is_clean"}))
			Expect(reporter.calls[0].state).To(Equal("failure"))
		})

		It("skips the notification when the author has no chat identity", func() {
			push.After.AuthorChatIdentity = nil

			res := newPipeline().Run(ctx, push)

			Expect(res.Code).To(Equal(0))
			Expect(res.Notified).To(BeFalse())
			Expect(messenger.sent).To(BeEmpty())
			Expect(reporter.calls).To(HaveLen(1))
		})

		It("keeps going when delivery fails", func() {
			messenger.err = errors.New("slack down")

			res := newPipeline().Run(ctx, push)

			Expect(res.Code).To(Equal(0))
			Expect(res.Notified).To(BeFalse())
			Expect(reporter.calls).To(HaveLen(1))
			Expect(reporter.calls[0].state).To(Equal("failure"))
		})
	})

	Context("when the lint configuration is missing", func() {
		BeforeEach(func() {
			ws.files = map[string]bool{}
		})

		It("fails without linting, committing or reporting", func() {
			res := newPipeline().Run(ctx, push)

			Expect(res.Code).To(Equal(1))
			Expect(res.Message).To(Equal("No 'tslint.json' found in project root"))
			Expect(res.Err).To(MatchError(pipeline.ErrMissingConfiguration))
			Expect(res.Stage).To(Equal(pipeline.StageFailed))
			Expect(res.FailedAt).To(Equal(pipeline.StageCapabilityCheck))
			Expect(runner.dirs).To(BeEmpty())
			Expect(ws.calls).To(BeEmpty())
			Expect(messenger.sent).To(BeEmpty())
			Expect(reporter.calls).To(BeEmpty())
			Expect(ws.cleaned).To(BeTrue())
		})

		It("names the configured file", func() {
			cfg.ConfigFile = ".eslintrc.json"

			res := newPipeline().Run(ctx, push)

			Expect(res.Message).To(Equal("No '.eslintrc.json' found in project root"))
		})
	})

	Context("when cloning fails", func() {
		BeforeEach(func() {
			executor.err = errors.New("repository not found")
		})

		It("fails with a clone error and no side effects", func() {
			res := newPipeline().Run(ctx, push)

			Expect(res.Code).To(Equal(1))
			Expect(res.Err).To(MatchError(pipeline.ErrClone))
			Expect(res.Err.Error()).To(ContainSubstring("repository not found"))
			Expect(res.FailedAt).To(Equal(pipeline.StageCloning))
			Expect(runner.dirs).To(BeEmpty())
			Expect(reporter.calls).To(BeEmpty())
			Expect(executor.prepared).To(Equal([]string{"acme/widgets@main"}))
		})
	})

	Context("when the lint process cannot run", func() {
		BeforeEach(func() {
			runner.err = &lint.ProcessError{Command: "npx tslint", Err: errors.New("executable file not found")}
		})

		It("reports failure and stops before committing", func() {
			res := newPipeline().Run(ctx, push)

			Expect(res.Code).To(Equal(1))
			Expect(res.FailedAt).To(Equal(pipeline.StageLinting))
			var procErr *lint.ProcessError
			Expect(errors.As(res.Err, &procErr)).To(BeTrue())
			Expect(ws.calls).To(BeEmpty())
			Expect(messenger.sent).To(BeEmpty())
			Expect(reporter.calls).To(HaveLen(1))
			Expect(reporter.calls[0].state).To(Equal("failure"))
			Expect(reporter.calls[0].description).NotTo(BeEmpty())
		})
	})

	Context("when the push is rejected", func() {
		BeforeEach(func() {
			runner.outcome = lint.Outcome{ExitCode: 1, Output: "src/a.ts:1 quotemark"}
			runner.dirties = ws
			ws.pushErr = errors.New("[rejected] main -> main (fetch first)")
		})

		It("skips notification, still reports status and fails", func() {
			res := newPipeline().Run(ctx, push)

			Expect(res.Code).To(Equal(1))
			Expect(res.Err).To(MatchError(pipeline.ErrGitOperation))
			Expect(res.FailedAt).To(Equal(pipeline.StageReconciling))
			Expect(res.Committed).To(BeFalse())
			Expect(messenger.sent).To(BeEmpty())
			Expect(reporter.calls).To(HaveLen(1))
			Expect(reporter.calls[0].state).To(Equal("failure"))
			Expect(ws.cleaned).To(BeTrue())
		})
	})

	Context("when status reporting fails", func() {
		BeforeEach(func() {
			runner.outcome = lint.Outcome{ExitCode: 0}
			reporter.err = errors.New("github unavailable")
		})

		It("keeps the result code", func() {
			res := newPipeline().Run(ctx, push)

			Expect(res.Code).To(Equal(0))
			Expect(res.StatusState).To(Equal("success"))
			Expect(res.StatusPosted).To(BeFalse())
			Expect(reporter.calls).To(HaveLen(1))
		})
	})

	Context("when the head commit came from remediation", func() {
		BeforeEach(func() {
			push.After.Message = "Automatic de-linting\n[auto-delint]"
		})

		It("lints it like any other push and reports success", func() {
			res := newPipeline().Run(ctx, push)

			Expect(res.Code).To(Equal(0))
			Expect(res.Skipped).To(BeFalse())
			Expect(res.Stage).To(Equal(pipeline.StageDone))
			Expect(executor.prepared).To(HaveLen(1))
			Expect(runner.dirs).To(HaveLen(1))
			Expect(res.Committed).To(BeFalse())
			Expect(ws.commits).To(BeEmpty())
			Expect(reporter.calls).To(HaveLen(1))
			Expect(reporter.calls[0].state).To(Equal("success"))
		})

		It("still fails when the lint configuration is missing", func() {
			push.After.Message = "fix typo [auto-delint] by hand"
			delete(ws.files, "tslint.json")

			res := newPipeline().Run(ctx, push)

			Expect(res.Code).To(Equal(1))
			Expect(res.FailedAt).To(Equal(pipeline.StageCapabilityCheck))
			Expect(res.Message).To(Equal("No 'tslint.json' found in project root"))
			Expect(reporter.calls).To(BeEmpty())
		})

		Context("and remediation commits are skipped", func() {
			BeforeEach(func() {
				cfg.SkipRemediationCommits = true
			})

			It("skips the push entirely", func() {
				res := newPipeline().Run(ctx, push)

				Expect(res.Code).To(Equal(0))
				Expect(res.Skipped).To(BeTrue())
				Expect(res.Stage).To(Equal(pipeline.StageSkipped))
				Expect(executor.prepared).To(BeEmpty())
				Expect(reporter.calls).To(BeEmpty())
			})
		})
	})

	It("records stage and run observations", func() {
		runner.outcome = lint.Outcome{ExitCode: 0}

		newPipeline().Run(ctx, push)

		Expect(observer.stages).To(Equal([]string{"cloning", "capability_check", "linting", "reconciling", "notifying", "reporting_status"}))
		Expect(observer.runs).To(Equal([]observedRun{{stage: "done", code: 0}}))
	})
})
