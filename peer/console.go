package peer

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"strings"

	"github.com/fernandafs/P2P-ProjectNapster/communication"
)

// RunConsole reads commands from in and prints results to out until quit,
// end of input, or ctx is done.
func (p *Peer) RunConsole(ctx context.Context, in io.Reader, out io.Writer) error {
	console := log.New(out, "", 0)
	console.Println(welcomeMessage)

	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		var command string
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case command = <-lines:
		}

		args := strings.Fields(command)
		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case join:
			if len(args) != 1 {
				console.Printf("%s. %s\n", badArguments, helpPrompt)
				continue
			}
			if err := p.Join(ctx); err != nil {
				console.Printf("Error: %v\n", err)
				continue
			}
			self, _ := p.Addr()
			console.Printf("Joined as %s sharing %d file(s)\n", self, len(p.filesToShare))

		case search:
			if len(args) != 2 {
				console.Printf("%s. %s\n", badArguments, helpPrompt)
				continue
			}
			found, err := p.Search(ctx, args[1])
			if err != nil {
				console.Printf("Error: %v\n", err)
				continue
			}
			if len(found) == 0 {
				console.Printf("No peer has %q\n", args[1])
				continue
			}
			console.Printf("Peers with %q:\n", args[1])
			for _, a := range found {
				console.Printf("\t%s\n", a)
			}

		case download:
			if len(args) != 3 {
				console.Printf("%s. %s\n", badArguments, helpPrompt)
				continue
			}
			from, err := communication.ParsePeerAddress(args[1])
			if err != nil {
				console.Printf("%s. %s\n", badIpPortArgument, helpPrompt)
				continue
			}
			n, err := p.Download(ctx, from, args[2])
			switch {
			case errors.Is(err, ErrNotAdvertised):
				console.Printf("Downloaded %q (%d bytes) but the tracker was not told: %v\n", args[2], n, err)
			case errors.Is(err, communication.ErrResourceNotFound):
				console.Printf("%s does not have %q\n", from, args[2])
			case err != nil:
				console.Printf("Error: %v\n", err)
			default:
				console.Printf("Downloaded %q (%d bytes) from %s\n", args[2], n, from)
			}

		case list:
			if len(args) != 1 {
				console.Printf("%s. %s\n", badArguments, helpPrompt)
				continue
			}
			names, err := p.List(ctx)
			if err != nil {
				console.Printf("Error: %v\n", err)
				continue
			}
			if len(names) == 0 {
				console.Println("The tracker knows no files")
				continue
			}
			for _, name := range names {
				console.Printf("\t%s\n", name)
			}

		case myFiles:
			local, err := p.store.List()
			if err != nil {
				console.Printf("Error: %v\n", err)
				continue
			}
			console.Printf("%s:\n", p.store.Dir())
			for _, f := range local {
				console.Printf("\t%s (%d bytes)\n", f.Name, f.Size)
			}

		case help:
			console.Printf("%s\n", helpMessage)
		case quit, q:
			return nil
		default:
			console.Printf("%s %q. %s\n", unrecognizedCommand, args[0], helpPrompt)
		}
	}
}
