package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"
	"github.com/olekukonko/tablewriter"

	"github.com/blackmichael/tumblr-archive/internal/domain"
	"github.com/blackmichael/tumblr-archive/internal/sqlite"
	"github.com/blackmichael/tumblr-archive/internal/tumblr"
)

// Config is shared by every sub-command.
var Config = new(struct {
	DB      string `long:"db" env:"ARCHIVE_DB_PATH" default:"archive.db" description:"Path of the SQLite archive"`
	Verbose bool   `short:"v" long:"verbose" description:"Log debug output to stderr"`
})

// withArchive opens the archive and runs fn against it. source may be nil.
func withArchive(source domain.PostSource, fn func(ctx context.Context, archive *domain.ArchiveService) error) error {
	level := slog.LevelWarn
	if Config.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx := context.Background()
	repo, err := sqlite.NewRepository(ctx, Config.DB, logger)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer repo.Close()

	return fn(ctx, domain.NewArchiveService(repo, repo, source, logger))
}

type cmdGet struct {
	ID int64 `long:"id" required:"true" description:"Post id"`
}

func (cmd *cmdGet) Execute([]string) error {
	return withArchive(nil, func(ctx context.Context, archive *domain.ArchiveService) error {
		post, found, err := archive.Get(ctx, cmd.ID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("post %d not found", cmd.ID)
		}
		return writePost(os.Stdout, post)
	})
}

type cmdList struct {
	Blog string `long:"blog" description:"Only list posts of this blog"`
}

func (cmd *cmdList) Execute([]string) error {
	return withArchive(nil, func(ctx context.Context, archive *domain.ArchiveService) error {
		posts, err := archive.GetAll(ctx)
		if err != nil {
			return err
		}
		if cmd.Blog != "" {
			posts = slices.DeleteFunc(posts, func(p domain.Post) bool { return p.BlogName != cmd.Blog })
		}
		slices.SortFunc(posts, func(a, b domain.Post) int { return b.Posted.Compare(a.Posted) })

		if err := outputTable(os.Stdout, posts); err != nil {
			return err
		}
		fmt.Printf("%s posts\n", humanize.Comma(int64(len(posts))))
		return nil
	})
}

func outputTable(w io.Writer, posts []domain.Post) error {
	var table = tablewriter.NewWriter(w)
	table.Header("ID", "Type", "Blog", "Posted", "Tags")

	for _, p := range posts {
		err := table.Append([]string{
			strconv.FormatInt(p.ID, 10),
			p.Type().String(),
			p.BlogName,
			humanize.Time(p.Posted),
			strings.Join(p.Tags, ", "),
		})
		if err != nil {
			return fmt.Errorf("append post %d: %w", p.ID, err)
		}
	}
	return table.Render()
}

type cmdDelete struct {
	ID int64 `long:"id" required:"true" description:"Post id"`
}

func (cmd *cmdDelete) Execute([]string) error {
	return withArchive(nil, func(ctx context.Context, archive *domain.ArchiveService) error {
		return archive.Delete(ctx, cmd.ID)
	})
}

type cmdImport struct {
	File string `long:"file" required:"true" description:"JSON file holding a post or an array of posts. Use - for stdin."`
}

func (cmd *cmdImport) Execute([]string) error {
	var (
		data []byte
		err  error
	)
	if cmd.File == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(cmd.File)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", cmd.File, err)
	}

	posts, err := domain.DecodePosts(data)
	if err != nil {
		return err
	}

	return withArchive(nil, func(ctx context.Context, archive *domain.ArchiveService) error {
		if err := archive.Put(ctx, posts...); err != nil {
			return err
		}
		fmt.Printf("imported %s posts\n", humanize.Comma(int64(len(posts))))
		return nil
	})
}

type cmdFetch struct {
	Blog   string `long:"blog" required:"true" description:"Blog to fetch from"`
	ID     int64  `long:"id" description:"Fetch only this post. By default every post of the blog is fetched."`
	APIKey string `long:"api-key" env:"TUMBLR_API_KEY" required:"true" description:"Tumblr OAuth consumer key"`
	APIURL string `long:"api-url" env:"TUMBLR_API_URL" default:"https://api.tumblr.com" description:"Tumblr API base URL"`
}

func (cmd *cmdFetch) Execute([]string) error {
	source := tumblr.NewClient(cmd.APIURL, cmd.APIKey)

	return withArchive(source, func(ctx context.Context, archive *domain.ArchiveService) error {
		if cmd.ID != 0 {
			post, err := archive.ImportPost(ctx, cmd.Blog, cmd.ID)
			if err != nil {
				return err
			}
			fmt.Printf("fetched %s post %d\n", post.Type(), post.ID)
			return nil
		}

		n, err := archive.SyncBlog(ctx, cmd.Blog)
		fmt.Printf("fetched %s posts of %s\n", humanize.Comma(int64(n)), cmd.Blog)
		return err
	})
}

func writePost(w io.Writer, post domain.Post) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(post)
}

func main() {
	var parser = flags.NewParser(Config, flags.Default)
	parser.LongDescription = `archivectl inspects and edits a tumblr archive database.

	Posts are read and written as JSON, one object per post with its variant
	selected by "type" and its fields nested under "content".`

	for _, c := range []struct {
		name, short, long string
		data              any
	}{
		{"get", "Print a post", "Print a post as JSON", &cmdGet{}},
		{"list", "List posts", "List stored posts, newest first", &cmdList{}},
		{"delete", "Delete a post", "Delete a post. Deleting a missing post is not an error", &cmdDelete{}},
		{"import", "Import posts", "Store posts read from a JSON file, replacing posts with the same id", &cmdImport{}},
		{"fetch", "Fetch posts from Tumblr", "Fetch a post, or every post of a blog, from the Tumblr API and store them", &cmdFetch{}},
	} {
		if _, err := parser.AddCommand(c.name, c.short, c.long, c.data); err != nil {
			fmt.Fprintf(os.Stderr, "error: add %s command: %v\n", c.name, err)
			os.Exit(1)
		}
	}

	// flags.Default prints parse and command errors itself.
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
