package secretstore_test

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/systmms/dsops-rotator/pkg/secretstore"
)

// printStages prints every version of secretID with its labels, in token order.
func printStages(store secretstore.Store, secretID string) {
	d, err := store.Describe(context.Background(), secretID)
	if err != nil {
		log.Fatal(err)
	}
	tokens := make([]string, 0, len(d.VersionStages))
	for token := range d.VersionStages {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	for _, token := range tokens {
		fmt.Printf("%s %v\n", token, d.VersionStages[token])
	}
}

// ExampleMemoryStore walks a version through the stage labels by hand.
func ExampleMemoryStore() {
	ctx := context.Background()

	store := secretstore.NewMemoryStore("example")
	store.AddVersion("prod/db/app", "tok-A", []byte(`{"password":"a"}`), secretstore.StageCurrent)

	// Register the new version, then give it a payload and PENDING
	if err := store.StartRotation(ctx, "prod/db/app", "tok-B"); err != nil {
		log.Fatal(err)
	}
	if err := store.PutVersion(ctx, "prod/db/app", "tok-B", []byte(`{"password":"b"}`),
		[]secretstore.StageLabel{secretstore.StagePending}); err != nil {
		log.Fatal(err)
	}
	printStages(store, "prod/db/app")

	// Promote in one atomic move
	if err := store.MoveStageLabel(ctx, "prod/db/app", secretstore.StageCurrent, "tok-B", "tok-A"); err != nil {
		log.Fatal(err)
	}
	if err := store.MoveStageLabel(ctx, "prod/db/app", secretstore.StagePending, "", "tok-B"); err != nil {
		log.Fatal(err)
	}
	fmt.Println("--")
	printStages(store, "prod/db/app")

	// Output:
	// tok-A [CURRENT]
	// tok-B [PENDING]
	// --
	// tok-A []
	// tok-B [CURRENT]
}

// ExampleDescription_Holder finds the version holding a label.
func ExampleDescription_Holder() {
	d := secretstore.Description{
		RotationEnabled: true,
		VersionStages: map[string][]secretstore.StageLabel{
			"tok-A": {secretstore.StageCurrent},
			"tok-B": {secretstore.StagePending},
		},
	}

	current, _ := d.Holder(secretstore.StageCurrent)
	_, hasPrevious := d.Holder(secretstore.StagePrevious)
	fmt.Println(current, hasPrevious)

	// Output:
	// tok-A false
}

// ExampleIsNotFound classifies a store error.
func ExampleIsNotFound() {
	store := secretstore.NewMemoryStore("example")

	_, err := store.GetVersion(context.Background(), "missing", secretstore.StageCurrent)
	fmt.Println(secretstore.IsNotFound(err))
	fmt.Println(err)

	// Output:
	// true
	// secret not found: missing in store example
}
