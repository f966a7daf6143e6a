/*
Package runner implements the console loop that drives an activity from a terminal
or a pipe.

It acts as the bridge between the activity engine and the outside world. The Runner
is itself the engine's Broadcaster for its room: it tracks whether the run is still
active and forwards chat lines to a pluggable IOHandler, which also supplies the
user's replies.

# Key Components

  - Runner: reads replies, dispatches slash commands and stops when the run ends.
  - IOHandler: decouples how lines are shown and read (text or JSON Lines).
  - TextHandler: interactive CLI usage with optional markdown rendering.
  - JSONHandler: one JSON event per line for headless hosts.

# Usage

	r := runner.NewRunner(runner.NewTextHandler(os.Stdin, os.Stdout),
		runner.WithRoom("console"),
		runner.WithUsername("ada"),
	)
	engine, err := lattice.New(root, lattice.WithBroadcaster(r))
	if err != nil {
		log.Fatal(err)
	}
	if err := r.Run(ctx, engine, "intro.yaml"); err != nil {
		log.Fatal(err)
	}
*/
package runner
