// Command slidecast-audience is a terminal audience client. It joins a
// session by code, follows the presenter through push and poll, and
// submits answers typed on stdin.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/slidecast/slidecast/internal/audience"
	"github.com/slidecast/slidecast/internal/models"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "gateway base URL")
	code := flag.String("code", "", "join code shown by the presenter")
	participant := flag.String("participant", "", "participant id (defaults to a fresh UUID)")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	if *code == "" {
		fmt.Fprintln(os.Stderr, "usage: slidecast-audience -code ABCDE [-server URL]")
		os.Exit(2)
	}
	if *participant == "" {
		*participant = uuid.New().String()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := audience.NewClient(*server)

	sess, err := client.JoinByCode(ctx, *code)
	if err != nil {
		fmt.Fprintf(os.Stderr, "join failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("joined session %s (code %s)\n", sess.ID, sess.Code)

	engine := audience.NewEngine(audience.Config{
		SessionID:     sess.ID,
		ParticipantID: *participant,
		Source:        client,
		Submitter:     client,
		Bus:           client,
	})
	if err := engine.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "start failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Stop()

	go func() {
		for state := range engine.Transitions() {
			printState(ctx, client, sess.ID, state)
			if state.Phase == audience.PhaseEnded {
				cancel()
				return
			}
		}
	}()
	printState(ctx, client, sess.ID, engine.State())

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("bye")
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			submit(ctx, client, sess.ID, engine, line)
		}
	}
}

// printState renders the current phase, fetching the slide for display
// when one is showing.
func printState(ctx context.Context, client *audience.Client, sessionID uuid.UUID, state audience.State) {
	switch state.Phase {
	case audience.PhaseWaiting:
		fmt.Println("waiting for the presenter...")
	case audience.PhaseEnded:
		fmt.Println("session has ended, thanks for participating")
	case audience.PhaseSubmitted:
		fmt.Println("answer recorded, waiting for the next slide")
	case audience.PhaseShowing:
		_, slide, err := client.Snapshot(ctx, sessionID)
		if err != nil || slide == nil {
			fmt.Println("new slide")
			return
		}
		fmt.Printf("\n== %s ==\n", slide.Title)
		if slide.Description != "" {
			fmt.Println(slide.Description)
		}
		printPrompt(slide)
	}
}

func printPrompt(slide *models.Slide) {
	switch slide.Type {
	case models.SlideTypeMultipleChoice:
		for i, opt := range slide.Settings.Options {
			fmt.Printf("  %d. %s\n", i+1, opt)
		}
		fmt.Println("type option number(s), comma separated:")
	case models.SlideTypeScale:
		min, max := slide.Settings.ScaleRange()
		fmt.Printf("type a number between %d and %d:\n", min, max)
	case models.SlideTypeWordCloud:
		fmt.Printf("type up to %d words, comma separated:\n", slide.Settings.WordLimit())
	case models.SlideTypeOpenEnded:
		fmt.Println("type your answer:")
	}
}

// submit parses the typed line against the showing slide and submits it.
func submit(ctx context.Context, client *audience.Client, sessionID uuid.UUID, engine *audience.Engine, line string) {
	state := engine.State()
	if state.Phase != audience.PhaseShowing {
		fmt.Println("nothing to answer right now")
		return
	}
	_, slide, err := client.Snapshot(ctx, sessionID)
	if err != nil || slide == nil {
		fmt.Println("could not load the current slide, try again")
		return
	}

	answer, err := parseAnswer(slide, line)
	if err != nil {
		fmt.Printf("could not read that answer: %v\n", err)
		return
	}

	if err := engine.Submit(ctx, answer); err != nil {
		if errors.Is(err, audience.ErrNoCurrentSlide) {
			fmt.Println("the slide changed before your answer went in")
			return
		}
		fmt.Printf("submit failed: %v\n", err)
		return
	}
	fmt.Println("answer submitted")
}

// parseAnswer turns a typed line into the answer shape for slide's type.
// Multiple choice input is 1-based to match the printed option list.
func parseAnswer(slide *models.Slide, line string) (models.Answer, error) {
	line = strings.TrimSpace(line)
	switch slide.Type {
	case models.SlideTypeMultipleChoice:
		var selected []int
		for _, part := range strings.Split(line, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return models.Answer{}, fmt.Errorf("%q is not an option number", part)
			}
			selected = append(selected, n-1)
		}
		return models.Answer{Selected: selected}, nil
	case models.SlideTypeScale:
		n, err := strconv.Atoi(line)
		if err != nil {
			return models.Answer{}, fmt.Errorf("%q is not a number", line)
		}
		return models.Answer{Value: &n}, nil
	case models.SlideTypeWordCloud:
		var words []string
		for _, w := range strings.Split(line, ",") {
			if w = strings.TrimSpace(w); w != "" {
				words = append(words, w)
			}
		}
		return models.Answer{Words: words}, nil
	case models.SlideTypeOpenEnded:
		return models.Answer{Text: line}, nil
	default:
		return models.Answer{}, fmt.Errorf("slide does not take answers")
	}
}
