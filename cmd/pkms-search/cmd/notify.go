package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashishacharya123/PKMS-sub000/internal/output"
	"github.com/ashishacharya123/PKMS-sub000/internal/store"
)

// changeEvent is one mutation notification, as read from --file input.
type changeEvent struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	Owner   string `json:"owner"`
	Deleted bool   `json:"deleted,omitempty"`

	// Tags replaces the record's tag set when present.
	Tags []string `json:"tags,omitempty"`

	Title      string    `json:"title,omitempty"`
	Body       string    `json:"body,omitempty"`
	Filename   string    `json:"filename,omitempty"`
	Location   string    `json:"location,omitempty"`
	Extra      []string  `json:"extra,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
	Favorite   bool      `json:"favorite,omitempty"`
	Archived   bool      `json:"archived,omitempty"`
	MimeFamily string    `json:"mime_family,omitempty"`
	Status     string    `json:"status,omitempty"`
	Priority   int       `json:"priority,omitempty"`
	SizeBytes  int64     `json:"size_bytes,omitempty"`
}

func newNotifyCmd() *cobra.Command {
	var event changeEvent
	var file string
	var created, updated string

	cmd := &cobra.Command{
		Use:   "notify [<type> <id>]",
		Short: "Notify the index of a record mutation",
		Long: `Apply a create, update or delete to the search index.

A single mutation is given as <type> <id> plus field flags. Bulk
mutations are read as a JSON array from --file (use - for stdin).

Examples:
  pkms-search notify note n1 --owner alice --title "Standup notes" --body "..."
  pkms-search notify note n1 --owner alice --delete
  pkms-search notify --file changes.json`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()

			if file != "" {
				return runNotifyBatch(cmd, e, file)
			}

			if len(args) != 2 {
				return fmt.Errorf("expected <type> <id> arguments or --file")
			}
			event.Type = args[0]
			event.ID = args[1]
			if event.CreatedAt, err = parseTimeFlag(created); err != nil {
				return fmt.Errorf("invalid --created: %w", err)
			}
			if event.UpdatedAt, err = parseTimeFlag(updated); err != nil {
				return fmt.Errorf("invalid --updated: %w", err)
			}
			if cmd.Flags().Changed("tag") && event.Tags == nil {
				event.Tags = []string{}
			}

			if err := applyEvent(cmd, e, &event); err != nil {
				return err
			}
			output.New(cmd.OutOrStdout()).Successf("Applied %s %s/%s",
				verbFor(&event), event.Type, event.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Read a JSON array of changes from a file (- for stdin)")
	cmd.Flags().StringVarP(&event.Owner, "owner", "o", "", "Record owner (required)")
	cmd.Flags().BoolVar(&event.Deleted, "delete", false, "Remove the record from the index")
	cmd.Flags().StringVar(&event.Title, "title", "", "Record title")
	cmd.Flags().StringVar(&event.Body, "body", "", "Record body text")
	cmd.Flags().StringVar(&event.Filename, "filename", "", "Original filename (documents, archive items)")
	cmd.Flags().StringVar(&event.Location, "location", "", "Folder path or location")
	cmd.Flags().StringSliceVar(&event.Extra, "extra", nil, "Additional searchable text (repeatable)")
	cmd.Flags().StringSliceVar(&event.Tags, "tag", nil, "Replace the record's tags (repeatable)")
	cmd.Flags().StringVar(&created, "created", "", "Creation time (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&updated, "updated", "", "Last update time (YYYY-MM-DD or RFC3339)")
	cmd.Flags().BoolVar(&event.Favorite, "favorite", false, "Mark as favorite")
	cmd.Flags().BoolVar(&event.Archived, "archived", false, "Mark as archived")
	cmd.Flags().StringVar(&event.MimeFamily, "mime", "", "MIME family (documents)")
	cmd.Flags().StringVar(&event.Status, "status", "", "Status (tasks, projects)")
	cmd.Flags().IntVar(&event.Priority, "priority", 0, "Priority (tasks)")
	cmd.Flags().Int64Var(&event.SizeBytes, "size", 0, "Size in bytes (documents, archive items)")

	return cmd
}

func runNotifyBatch(cmd *cobra.Command, e *env, file string) error {
	var r io.Reader = cmd.InOrStdin()
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("open batch file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var events []changeEvent
	if err := json.NewDecoder(r).Decode(&events); err != nil {
		return fmt.Errorf("decode batch file: %w", err)
	}

	out := output.New(cmd.OutOrStdout())
	if len(events) == 0 {
		out.Warning("Batch file contains no changes")
		return nil
	}
	for i := range events {
		if err := applyEvent(cmd, e, &events[i]); err != nil {
			return fmt.Errorf("event %d (%s/%s): %w", i, events[i].Type, events[i].ID, err)
		}
		out.Progress(i+1, len(events), "applying changes")
	}
	out.Successf("Applied %d changes", len(events))
	return nil
}

// applyEvent writes tags first so the index pass sees the final tag set,
// then routes the change through the synchronizer.
func applyEvent(cmd *cobra.Command, e *env, ev *changeEvent) error {
	ctx := cmd.Context()
	typ := store.ContentType(ev.Type)

	if !ev.Deleted && ev.Tags != nil {
		if err := e.set.Tags().SetTags(ctx, ev.Owner, typ, ev.ID, ev.Tags); err != nil {
			return err
		}
	}

	var fields *store.IndexFields
	if !ev.Deleted {
		fields = &store.IndexFields{
			Title:      ev.Title,
			Body:       ev.Body,
			Filename:   ev.Filename,
			Location:   ev.Location,
			Extra:      ev.Extra,
			CreatedAt:  ev.CreatedAt,
			UpdatedAt:  ev.UpdatedAt,
			IsFavorite: ev.Favorite,
			IsArchived: ev.Archived,
			MimeFamily: ev.MimeFamily,
			Status:     ev.Status,
			Priority:   ev.Priority,
			SizeBytes:  ev.SizeBytes,
		}
		if fields.UpdatedAt.IsZero() {
			fields.UpdatedAt = time.Now().UTC()
		}
		if fields.CreatedAt.IsZero() {
			fields.CreatedAt = fields.UpdatedAt
		}
	}
	return e.sync.NotifyChange(ctx, typ, ev.ID, ev.Owner, fields)
}

func verbFor(ev *changeEvent) string {
	if ev.Deleted {
		return "delete"
	}
	return "upsert"
}
