package version

import (
	"context"
	"sort"
	"testing"

	"living-science-documents/internal/domain"
	"living-science-documents/internal/registration"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type childView struct {
	Authors     []string
	AuthorOrder []int
	Figures     []string
	Tables      []string
	Keywords    []string
	Attachments []string
}

func childrenOf(v *domain.DocumentVersion) childView {
	var cv childView
	for _, a := range v.Authors {
		cv.Authors = append(cv.Authors, a.Name)
		cv.AuthorOrder = append(cv.AuthorOrder, a.Order)
	}
	for _, f := range v.Figures {
		cv.Figures = append(cv.Figures, f.Title)
	}
	for _, t := range v.Tables {
		cv.Tables = append(cv.Tables, t.Content)
	}
	for _, k := range v.Keywords {
		cv.Keywords = append(cv.Keywords, k.Keyword)
	}
	for _, a := range v.Attachments {
		cv.Attachments = append(cv.Attachments, a.Title)
	}
	return cv
}

// TestLifecycleProperties drives random edits and publishes against one
// publication and checks the versioning invariants after every step.
func TestLifecycleProperties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		repo := NewMemoryRepository()
		svc := NewService(repo, registration.NewSandbox(), Config{
			FrontendURL:   "http://frontend.test",
			PublisherName: "Living Science Documents",
		})

		pub := &domain.Publication{Title: "Property", OwnerID: ownerID}
		require.NoError(rt, repo.CreatePublication(ctx, pub))
		first, err := svc.CreateInitialVersion(ctx, owner, pub.ID, InitialVersionRequest{
			Content: domain.ContentFields{MainText: "v1"},
			Authors: []AuthorInput{
				{Name: "Ada", UserID: ptr(authorID), Order: 1},
				{Name: "Grace", Order: 0},
			},
			Figures:     []FigureInput{{FigureNumber: 1, Title: "f1"}},
			Keywords:    []string{"k1", "k2"},
			Attachments: []AttachmentInput{{Title: "a1"}},
		})
		require.NoError(rt, err)

		ids := []uint64{first.ID}
		publishedContent := map[uint64]domain.ContentFields{}
		texts := []string{"alpha", "beta", "gamma"}

		steps := rapid.IntRange(1, 25).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			target := rapid.SampledFrom(ids).Draw(rt, "target")

			if rapid.Bool().Draw(rt, "publish") {
				cur, err := repo.FindByID(ctx, target)
				require.NoError(rt, err)
				if cur.Status != domain.StatusPublished {
					cur.Status = domain.StatusAccepted
					require.NoError(rt, repo.SaveState(ctx, cur))
				}
				out, err := svc.Publish(ctx, owner, target)
				require.NoError(rt, err)
				if _, seen := publishedContent[target]; !seen {
					publishedContent[target] = out.ContentFields
				}

				// every older version has its discussion closed
				all, _, err := repo.ListByPublication(ctx, pub.ID, false, 1, 100)
				require.NoError(rt, err)
				for _, u := range all {
					if u.VersionNumber < out.VersionNumber {
						require.NotEqual(rt, domain.DiscussionOpen, u.DiscussionStatus, "version %d still open", u.VersionNumber)
					}
				}
				continue
			}

			prior, err := repo.FindByID(ctx, target)
			require.NoError(rt, err)
			patch := domain.ContentPatch{}
			if rapid.Bool().Draw(rt, "change") {
				patch.MainText = ptr(rapid.SampledFrom(texts).Draw(rt, "text"))
			} else {
				patch.MainText = ptr(prior.MainText)
			}

			res, err := svc.ProposeEdit(ctx, author, target, EditRequest{Content: patch})
			require.NoError(rt, err)

			after, err := repo.FindByID(ctx, target)
			require.NoError(rt, err)
			require.Equal(rt, prior.ContentFields, after.ContentFields)
			require.Equal(rt, childrenOf(prior), childrenOf(after))

			if res.Created {
				ids = append(ids, res.Version.ID)
				created, err := repo.FindByID(ctx, res.Version.ID)
				require.NoError(rt, err)
				require.Equal(rt, childrenOf(prior), childrenOf(created))
				require.Equal(rt, domain.IdentifierDraft, created.DOIStatus)
				require.Equal(rt, *patch.MainText, created.MainText)
			} else {
				require.Equal(rt, prior.ID, res.Version.ID)
			}
		}

		// numbering is exactly 1..n
		all, _, err := repo.ListByPublication(ctx, pub.ID, false, 1, 100)
		require.NoError(rt, err)
		numbers := make([]int, 0, len(all))
		dois := map[string]bool{}
		for _, v := range all {
			numbers = append(numbers, int(v.VersionNumber))
			require.False(rt, dois[v.DOI], "duplicate identifier %s", v.DOI)
			dois[v.DOI] = true
		}
		sort.Ints(numbers)
		for i, n := range numbers {
			require.Equal(rt, i+1, n)
		}

		// published content never changed
		for id, content := range publishedContent {
			v, err := repo.FindByID(ctx, id)
			require.NoError(rt, err)
			require.Equal(rt, content, v.ContentFields)
			require.NotNil(rt, v.ReleaseDate)
			require.True(rt, v.DOIStatus.Resolvable())
		}
	})
}
