// Package fakes provides test doubles for the cloud SDK clients the secret
// stores depend on.
//
// Fakes are manually implemented (not generated) and keep enough state to
// exercise a full rotation against them.
//
// Usage:
//
//	fake := fakes.NewFakeSecretsManagerClient()
//	fake.AddSecretString("prod/db", "v1", `{"password":"x"}`, true)
//	store, _ := secretstores.NewAWSSecretsManagerStore("aws", nil,
//	    secretstores.WithSecretsManagerClient(fake))
package fakes
