package event_test

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rancher/delint-action/internal/event"
)

var _ = Describe("ParsePushEvent", func() {
	const sample = `{
		"ref": "refs/heads/feature/widgets",
		"before": "1111111111111111111111111111111111111111",
		"after": "2222222222222222222222222222222222222222",
		"created": false,
		"deleted": false,
		"repository": {
			"name": "widgets",
			"owner": {"login": "acme", "name": "acme"}
		},
		"sender": {"login": "pusher"},
		"head_commit": {
			"id": "2222222222222222222222222222222222222222",
			"message": "Add widget",
			"author": {"name": "Alice", "email": "alice@example.com", "username": "alice"}
		}
	}`

	It("parses repository, branch and head commit details", func() {
		payload, err := event.ParsePushEvent(strings.NewReader(sample))
		Expect(err).NotTo(HaveOccurred())

		Expect(payload.Repository).To(Equal(event.Repository{Owner: "acme", Name: "widgets"}))
		Expect(payload.Ref).To(Equal("refs/heads/feature/widgets"))
		Expect(payload.Branch).To(Equal("feature/widgets"))
		Expect(payload.Before).To(Equal("1111111111111111111111111111111111111111"))
		Expect(payload.After).To(Equal("2222222222222222222222222222222222222222"))
		Expect(payload.HeadCommit).To(Equal(event.HeadCommit{
			SHA:         "2222222222222222222222222222222222222222",
			Message:     "Add widget",
			AuthorName:  "Alice",
			AuthorLogin: "alice",
			AuthorEmail: "alice@example.com",
		}))
		Expect(payload.AuthorLogin()).To(Equal("alice"))
		Expect(payload.SkipReason()).To(BeEmpty())
	})

	It("falls back to the owner name and sender", func() {
		payload, err := event.ParsePushEvent(strings.NewReader(`{
			"ref": "refs/heads/main",
			"after": "abc",
			"repository": {"name": "widgets", "owner": {"name": "acme"}},
			"sender": {"login": "pusher"},
			"head_commit": {"id": "abc", "message": "m", "author": {"email": "bot@example.com"}}
		}`))
		Expect(err).NotTo(HaveOccurred())

		Expect(payload.Repository.Owner).To(Equal("acme"))
		Expect(payload.AuthorLogin()).To(Equal("pusher"))
	})

	It("uses the after sha when the head commit is absent", func() {
		payload, err := event.ParsePushEvent(strings.NewReader(`{"ref":"refs/heads/main","after":"abc","repository":{"name":"r","owner":{"login":"o"}}}`))
		Expect(err).NotTo(HaveOccurred())

		Expect(payload.HeadCommit.SHA).To(Equal("abc"))
	})

	DescribeTable("skip reasons",
		func(body, reason string) {
			payload, err := event.ParsePushEvent(strings.NewReader(body))
			Expect(err).NotTo(HaveOccurred())
			Expect(payload.SkipReason()).To(Equal(reason))
		},
		Entry("deleted branch", `{"ref":"refs/heads/old","deleted":true,"after":"0000000000000000000000000000000000000000"}`, "branch deleted"),
		Entry("tag", `{"ref":"refs/tags/v1.0.0","after":"abc"}`, "tag push"),
		Entry("other ref", `{"ref":"refs/notes/commits","after":"abc"}`, `unsupported ref "refs/notes/commits"`),
		Entry("null head", `{"ref":"refs/heads/main","after":"0000000000000000000000000000000000000000"}`, "push has no head commit"),
	)

	It("returns an error for malformed payloads", func() {
		_, err := event.ParsePushEvent(strings.NewReader(`{"ref":`))
		Expect(err).To(MatchError(ContainSubstring("decode push event")))
	})

	It("reads payloads from disk", func() {
		path := filepath.Join(GinkgoT().TempDir(), "event.json")
		Expect(os.WriteFile(path, []byte(sample), 0o600)).To(Succeed())

		payload, err := event.ParsePushEventFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(payload.Branch).To(Equal("feature/widgets"))

		_, err = event.ParsePushEventFile(filepath.Join(GinkgoT().TempDir(), "missing.json"))
		Expect(err).To(MatchError(ContainSubstring("open event file")))
	})
})
