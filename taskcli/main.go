package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/chepyr/go-task-sync/client/auth"
	"github.com/chepyr/go-task-sync/client/feed"
	"github.com/chepyr/go-task-sync/client/session"
	"github.com/chepyr/go-task-sync/client/store"
	"github.com/chepyr/go-task-sync/client/sync"
)

func main() {
	serverURL := os.Getenv("TASKSYNC_SERVER_URL")
	if serverURL == "" {
		serverURL = "http://localhost:8080"
	}

	identity := auth.NewClient(serverURL)
	guard := session.NewGuard(identity)
	engine := sync.NewEngine(
		store.NewClient(serverURL, identity.Token),
		sync.ListenerFeed{Listener: feed.NewListener(serverURL, identity.Token)},
		guard,
	)

	ctx := context.Background()
	guard.Seed(ctx)
	engine.Start(ctx)

	scanner := bufio.NewScanner(os.Stdin)
	if guard.Current() == nil {
		if !signInLoop(ctx, identity, scanner) {
			return
		}
	}

	engine.OnChange(func() {
		// a feed event landed; the next prompt shows fresh state
	})

	fmt.Println("Commands: list, add, edit <n>, rm <n>, refresh, logout, quit")
	commandLoop(ctx, engine, identity, scanner)
}

func signInLoop(ctx context.Context, identity *auth.Client, scanner *bufio.Scanner) bool {
	for {
		fmt.Print("sign in or sign up? [in/up/quit]: ")
		if !scanner.Scan() {
			return false
		}
		mode := strings.TrimSpace(scanner.Text())
		if mode == "quit" {
			return false
		}
		if mode != "in" && mode != "up" {
			continue
		}

		email := prompt(scanner, "email: ")
		password := prompt(scanner, "password: ")

		if mode == "up" {
			if err := identity.SignUp(ctx, email, password); err != nil {
				fmt.Printf("sign up failed: %v\n", err)
				continue
			}
			fmt.Println("account created, sign in now")
			continue
		}

		if _, err := identity.SignIn(ctx, email, password); err != nil {
			fmt.Printf("sign in failed: %v\n", err)
			continue
		}
		return true
	}
}

func commandLoop(ctx context.Context, engine *sync.Engine, identity *auth.Client, scanner *bufio.Scanner) {
	for {
		render(engine)
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "quit":
			return

		case "logout":
			identity.SignOut()
			fmt.Println("signed out")
			return

		case "refresh", "list":
			if err := engine.Refresh(ctx); err != nil {
				fmt.Printf("refresh failed: %v\n", err)
			}

		case "add":
			engine.BeginEdit("")
			editDraft(ctx, engine, scanner)

		case "edit":
			task, ok := taskByIndex(engine, fields)
			if !ok {
				continue
			}
			engine.BeginEdit(task)
			if engine.Draft() == nil {
				fmt.Println("task is gone, refreshing")
				continue
			}
			editDraft(ctx, engine, scanner)

		case "rm":
			task, ok := taskByIndex(engine, fields)
			if !ok {
				continue
			}
			if err := engine.DeleteTask(ctx, task); err != nil {
				fmt.Printf("delete failed: %v\n", err)
			}

		default:
			fmt.Println("commands: list, add, edit <n>, rm <n>, refresh, logout, quit")
		}
	}
}

func editDraft(ctx context.Context, engine *sync.Engine, scanner *bufio.Scanner) {
	draft := engine.Draft()
	title := prompt(scanner, fmt.Sprintf("title [%s]: ", draft.Title))
	if title == "" {
		title = draft.Title
	}
	description := prompt(scanner, fmt.Sprintf("description [%s]: ", draft.Description))
	if description == "" {
		description = draft.Description
	}

	engine.UpdateDraft(title, description)
	if err := engine.SubmitEdit(ctx); err != nil {
		// draft stays active; re-running add/edit re-prompts with it
		fmt.Printf("save failed: %v\n", err)
	}
}

func taskByIndex(engine *sync.Engine, fields []string) (string, bool) {
	if len(fields) < 2 {
		fmt.Println("task number required")
		return "", false
	}
	snapshot := engine.Snapshot()
	var n int
	if _, err := fmt.Sscanf(fields[1], "%d", &n); err != nil || n < 1 || n > len(snapshot) {
		fmt.Println("no such task")
		return "", false
	}
	return snapshot[n-1].ID.String(), true
}

func render(engine *sync.Engine) {
	snapshot := engine.Snapshot()
	if len(snapshot) == 0 {
		fmt.Println("No tasks yet.")
	}
	for i, task := range snapshot {
		fmt.Printf("%2d. %s", i+1, task.Title)
		if task.Description != "" {
			fmt.Printf(" - %s", task.Description)
		}
		fmt.Println()
	}
	if err := engine.Err(); err != nil {
		fmt.Printf("(last error: %v)\n", err)
	}
}

func prompt(scanner *bufio.Scanner, label string) string {
	fmt.Print(label)
	if !scanner.Scan() {
		log.Fatal("stdin closed")
	}
	return strings.TrimSpace(scanner.Text())
}
