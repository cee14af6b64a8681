package pipeline_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rancher/delint-action/internal/pipeline"
)

var _ = Describe("Committer", func() {
	var (
		ctx       context.Context
		ws        *fakeWorkspace
		committer pipeline.Committer
	)

	BeforeEach(func() {
		ctx = context.Background()
		ws = &fakeWorkspace{dir: "/tmp/ws"}
		committer = pipeline.Committer{}
	})

	It("does nothing on a clean workspace", func() {
		committed, err := committer.Reconcile(ctx, ws, "main", "fix")

		Expect(err).NotTo(HaveOccurred())
		Expect(committed).To(BeFalse())
		Expect(ws.calls).To(Equal([]string{"is_clean"}))
	})

	It("is idempotent once changes are pushed", func() {
		ws.dirty = true

		first, err := committer.Reconcile(ctx, ws, "main", "fix")
		Expect(err).NotTo(HaveOccurred())
		second, err := committer.Reconcile(ctx, ws, "main", "fix")
		Expect(err).NotTo(HaveOccurred())

		Expect(first).To(BeTrue())
		Expect(second).To(BeFalse())
		Expect(ws.commits).To(HaveLen(1))
		Expect(ws.pushes).To(Equal(1))
	})

	It("appends the marker to messages that lack it", func() {
		ws.dirty = true

		_, err := committer.Reconcile(ctx, ws, "main", "Fix lint\n")

		Expect(err).NotTo(HaveOccurred())
		Expect(ws.commits).To(Equal([]string{"Fix lint\n[auto-delint]"}))
	})

	It("uses a custom marker", func() {
		ws.dirty = true
		committer.Marker = "[bot]"

		_, err := committer.Reconcile(ctx, ws, "main", "Automatic de-linting")

		Expect(err).NotTo(HaveOccurred())
		Expect(ws.commits).To(Equal([]string{"Automatic de-linting\n[bot]"}))
	})

	DescribeTable("stops at the first failing step",
		func(setup func(*fakeWorkspace), expectedCalls []string) {
			ws.dirty = true
			setup(ws)

			committed, err := committer.Reconcile(ctx, ws, "main", "fix")

			Expect(committed).To(BeFalse())
			Expect(err).To(MatchError(pipeline.ErrGitOperation))
			Expect(ws.calls).To(Equal(expectedCalls))
		},
		Entry("status", func(w *fakeWorkspace) { w.isCleanErr = errors.New("boom") }, []string{"is_clean"}),
		Entry("branch", func(w *fakeWorkspace) { w.createErr = errors.New("boom") }, []string{"is_clean", "create_branch"}),
		Entry("commit", func(w *fakeWorkspace) { w.commitErr = errors.New("boom") }, []string{"is_clean", "create_branch", "commit"}),
		Entry("push", func(w *fakeWorkspace) { w.pushErr = errors.New("boom") }, []string{"is_clean", "create_branch", "commit", "push"}),
	)
})

var _ = Describe("WithMarker", func() {
	DescribeTable("message handling",
		func(message, expected string) {
			Expect(pipeline.WithMarker(message, "[auto-delint]")).To(Equal(expected))
		},
		Entry("already tagged", "Automatic de-linting\n[auto-delint]", "Automatic de-linting\n[auto-delint]"),
		Entry("untagged", "Automatic de-linting", "Automatic de-linting\n[auto-delint]"),
		Entry("empty", "", "[auto-delint]"),
	)
})
