package notify_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rancher/delint-action/internal/lint"
	"github.com/rancher/delint-action/internal/notify"
	"github.com/rancher/delint-action/internal/pipeline"
)

type delivery struct {
	recipient string
	message   notify.Message
}

type recordingMessenger struct {
	err  error
	sent []delivery
}

func (m *recordingMessenger) Send(_ context.Context, recipient string, msg notify.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, delivery{recipient: recipient, message: msg})
	return nil
}

var _ = Describe("Dispatcher", func() {
	var (
		ctx        context.Context
		messenger  *recordingMessenger
		dispatcher *notify.Dispatcher
		push       pipeline.PushEvent
		identity   string
		logs       *bytes.Buffer
	)

	BeforeEach(func() {
		ctx = context.Background()
		messenger = &recordingMessenger{}
		logs = &bytes.Buffer{}
		dispatcher = notify.NewDispatcher(messenger,
			notify.WithClock(func() time.Time { return time.Unix(1700000000, 0) }),
			notify.WithLogger(slog.New(slog.NewTextHandler(logs, nil))),
		)
		identity = "@alice"
		push = pipeline.PushEvent{
			Owner:  "acme",
			Repo:   "widgets",
			Branch: "main",
			After:  pipeline.Commit{SHA: "abc123", AuthorLogin: "alice", AuthorChatIdentity: &identity},
		}
	})

	It("sends a formatted failure message", func() {
		outcome := lint.Outcome{ExitCode: 1, Output: "/work/delint-1/src/file.ts:3 unused var\n/work/delint-1/src/b.ts:1 quotemark"}

		Expect(dispatcher.Notify(ctx, push, outcome, "/work/delint-1")).To(BeTrue())

		Expect(messenger.sent).To(HaveLen(1))
		Expect(messenger.sent[0].recipient).To(Equal("@alice"))
		msg := messenger.sent[0].message
		Expect(msg.Text).To(Equal("Linting failed after your push to `acme/widgets`"))
		Expect(msg.Attachments).To(Equal([]notify.Attachment{{
			Color:      "#D94649",
			Fallback:   "Linting of TypeScript sources failed",
			Title:      "Linting of TypeScript sources failed",
			Text:       "```/src/file.ts:3 unused var\n/src/b.ts:1 quotemark```",
			MarkdownIn: []string{"text"},
			Footer:     "acme/widgets",
			FooterIcon: "https://images.atomist.com/rug/commit.png",
			Timestamp:  1700000000,
		}}))
	})

	DescribeTable("skips delivery",
		func(outcome lint.Outcome, mutate func(*pipeline.PushEvent)) {
			if mutate != nil {
				mutate(&push)
			}

			Expect(dispatcher.Notify(ctx, push, outcome, "/work")).To(BeFalse())
			Expect(messenger.sent).To(BeEmpty())
		},
		Entry("when lint passed", lint.Outcome{ExitCode: 0, Output: "warnings only"}, nil),
		Entry("when output is empty", lint.Outcome{ExitCode: 1, Output: ""}, nil),
		Entry("when output is whitespace", lint.Outcome{ExitCode: 1, Output: " \n\t"}, nil),
		Entry("when the author has no identity", lint.Outcome{ExitCode: 1, Output: "x"}, func(p *pipeline.PushEvent) {
			p.After.AuthorChatIdentity = nil
		}),
		Entry("when the identity is empty", lint.Outcome{ExitCode: 1, Output: "x"}, func(p *pipeline.PushEvent) {
			empty := ""
			p.After.AuthorChatIdentity = &empty
		}),
	)

	It("swallows delivery failures", func() {
		messenger.err = errors.New("channel_not_found")

		Expect(dispatcher.Notify(ctx, push, lint.Outcome{ExitCode: 1, Output: "x"}, "/work")).To(BeFalse())
		Expect(logs.String()).To(ContainSubstring("notification delivery failed"))
		Expect(logs.String()).To(ContainSubstring("channel_not_found"))
	})

	It("returns false without a messenger", func() {
		d := notify.NewDispatcher(nil)

		Expect(d.Notify(ctx, push, lint.Outcome{ExitCode: 1, Output: "x"}, "/work")).To(BeFalse())
	})
})

var _ = Describe("StripPath", func() {
	It("removes every occurrence of the directory", func() {
		Expect(notify.StripPath("/a/b/x.ts and /a/b/y.ts", "/a/b")).To(Equal("/x.ts and /y.ts"))
	})

	DescribeTable("never leaves the directory behind",
		func(output, dir, want string) {
			got := notify.StripPath(output, dir)
			Expect(got).To(Equal(want))
			Expect(got).NotTo(ContainSubstring(dir))
		},
		Entry("nested occurrence", "error at /tmp/w/tmp/wss/a.ts:3", "/tmp/ws", "error at /a.ts:3"),
		Entry("doubly nested occurrence", "/tmp/w/tmp/w/tmp/wsss/b.ts", "/tmp/ws", "/b.ts"),
		Entry("adjacent occurrences", "/tmp/ws/tmp/ws/c.ts", "/tmp/ws", "/c.ts"),
	)

	It("leaves output alone for an empty directory", func() {
		Expect(notify.StripPath("/a/b/x.ts", "")).To(Equal("/a/b/x.ts"))
	})

	It("removes the symlink-resolved directory as well", func() {
		root := GinkgoT().TempDir()
		real := filepath.Join(root, "real")
		link := filepath.Join(root, "link")
		Expect(os.Mkdir(real, 0o755)).To(Succeed())
		Expect(os.Symlink(real, link)).To(Succeed())
		resolved, err := filepath.EvalSymlinks(link)
		Expect(err).NotTo(HaveOccurred())

		out := notify.StripPath(link+"/a.ts\n"+resolved+"/b.ts", link)

		Expect(out).To(Equal("/a.ts\n/b.ts"))
	})
})
