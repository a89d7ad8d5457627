package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `gradcredits tracks course credits toward graduation. Data lives locally first; signing in mirrors it to the cloud.

Model:
- Entry: credits earned in one term for one requirement bucket (optional course name, major track, note).
- Term: {year}-{half} key such as 3-2. Terms 1-1 through 4-2 always exist; add_term registers more.
- Requirements: major, liberal, engineering-common, graduation, plus second major when enabled.

Workflow:
1) get_progress for the current standing; list_terms and list_credits to browse.
2) add_credit / update_credit / remove_credit to edit. Terms must be registered first.
3) set_second_major switches the major minimum from 62 to 48 and adds the second-major row.
4) begin_sign_in then complete_sign_in to back up and sync. Responses may carry sync_warning:
   the local edit stands even when the cloud write failed.

Docs:
- gradcredits://docs/buckets
- gradcredits://docs/requirements
- gradcredits://docs/sync
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "gradcredits://docs/buckets",
		Name:        "docs_buckets",
		Title:       "Requirement buckets",
		Description: "Which bucket to record a course under.",
		Content: `# Buckets

| Bucket | Counts toward |
|---|---|
| MAJOR_REQUIRED | major, graduation |
| MAJOR_ELECTIVE | major, graduation |
| LIBERAL | liberal, graduation |
| ENGINEERING_COMMON | engineering-common, graduation |
| SECOND_MAJOR_REQUIRED | second major, graduation |
| SECOND_MAJOR_ELECTIVE | second major, graduation |

Credits are multiples of 0.5 between 0 and 30.

major_track (PRIMARY or SECONDARY) is an optional tag on major entries. It is stored and
synced but does not change which total an entry counts toward: the bucket decides.
`,
	},
	{
		URI:         "gradcredits://docs/requirements",
		Name:        "docs_requirements",
		Title:       "Graduation requirements",
		Description: "Minimums and how eligibility is evaluated.",
		Content: `# Requirements

| Row | Minimum |
|---|---|
| Major | 62 (48 while a second major is enabled) |
| Liberal | 50 |
| Engineering-common | 3 |
| Second major | 39 (only while enabled) |
| Graduation | 130 |

Each row reports current, required, remaining (never negative), progress percent
(capped at 100) and completed.

Two eligibility verdicts are reported:
- eligible_ignoring_second_major: every row except second major is complete.
- eligible_respecting_second_major: every row is complete.

Sub-minimums (major required 36, major elective 26, second major required 20,
second major elective 19) are informational; no row enforces them.
`,
	},
	{
		URI:         "gradcredits://docs/sync",
		Name:        "docs_sync",
		Title:       "Sign-in and sync",
		Description: "What happens to local data when signing in, editing and signing out.",
		Content: `# Sync

- Signed out: everything is local. Nothing is sent anywhere.
- First sign-in for an account with no cloud copy: the local ledger is pushed.
- Sign-in for an account with a cloud copy: the cloud copy replaces the local ledger.
  Local-only entries are discarded (last writer wins, whole ledger).
- While signed in every edit pushes the whole ledger. A failed push leaves the local
  edit in place and shows up as sync_warning and in get_account.last_error.
- sync_now pushes the local ledger. Edits made while a sign-in is still deciding
  between push and pull are pushed once that decision lands.
- sign_out keeps local data. scope=global also revokes the provider session.
- On restart the last identity is restored immediately and verified in the background.
  If verification fails the client falls back to signed out after a short grace period.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		doc := doc

		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
