package sequence_test

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mkock/bootphase"
	"github.com/mkock/bootphase/sequence"
)

func Example_basic() {
	// Let's use a boot sequence to construct a sentence!
	// Each phase adds a word to the sentence it is given.
	type sentence struct {
		sync.Mutex
		words []string
	}

	add := func(word string) *bootphase.Phase {
		return bootphase.MustNew(bootphase.NamedFunc(word, func(_ context.Context, args []any, next bootphase.Next) {
			s := args[0].(*sentence)
			s.Lock()
			s.words = append(s.words, word)
			s.Unlock()
			next(nil)
		}))
	}

	seq := sequence.New("Basic Example")
	seq.Register("welcome", add("Welcome"))
	seq.Register("to", add("to"))
	seq.Register("my", add("my"))
	seq.Register("world", add("world!"))
	i, err := seq.Sequence("welcome > to > my > world")
	if err != nil {
		panic(err)
	}

	s := &sentence{}
	up := i.Up(context.Background(), s)
	if err := up.Wait(); err != nil {
		panic(err)
	}

	fmt.Println(strings.Join(s.words, " "))

	// Output:
	// Welcome to my world!
}

func Example_progress() {
	noop := bootphase.MustNew(bootphase.StepFunc(func(_ context.Context, _ []any, next bootphase.Next) {
		next(nil)
	}))

	seq := sequence.New("Progress Example")
	seq.Register("config", noop)
	seq.Register("database", noop)
	seq.Register("http", noop)
	i, err := seq.Sequence("config > database > http")
	if err != nil {
		panic(err)
	}

	fmt.Println(i)
	for p := range i.Up(context.Background()).Progress() {
		fmt.Println(p.Phase)
	}

	// Output:
	// (config>database>http)
	// config
	// database
	// http
}
