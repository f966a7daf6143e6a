/*
Package lattice runs declarative, multi-turn activities such as quizzes, guided
lessons and text games, where free-text answers are classified into buckets and the
bucket drives navigation, metadata changes and feedback.

An activity is a YAML document of sections and steps. Each room plays at most one
activity at a time; its position and metadata live in a StateStore, its chat history
in a MessageStore, and everything the room should see is emitted through a
Broadcaster. The classifier, feedback, translation and grading services are ports,
so the engine can be embedded in a CLI, an HTTP server or an MCP agent.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/lattice"
		"github.com/aretw0/lattice/pkg/adapters/memory"
		"github.com/aretw0/lattice/pkg/adapters/openai"
	)

	func main() {
		llm, err := openai.NewClient(openai.WithAPIKey("sk-..."))
		if err != nil {
			log.Fatal(err)
		}
		events := memory.NewRecorder()

		// Documents are read from ./activities
		eng, err := lattice.New("./activities",
			lattice.WithClassifier(llm),
			lattice.WithFeedback(llm),
			lattice.WithBroadcaster(events),
		)
		if err != nil {
			log.Fatal(err)
		}

		ctx := context.Background()
		if err := eng.Start(ctx, "room-1", "intro.yaml", "ada"); err != nil {
			log.Fatal(err)
		}
		if err := eng.Respond(ctx, "room-1", "ada", "I think it is 42"); err != nil {
			log.Fatal(err)
		}
		for _, line := range events.Chat("room-1") {
			log.Println(line)
		}
	}
*/
package lattice
