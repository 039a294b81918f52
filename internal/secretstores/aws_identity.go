package secretstores

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// CallerIdentityAPI is the STS operation used to confirm credentials.
type CallerIdentityAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Identity describes the principal a store acts as.
type Identity struct {
	Account string
	ARN     string
}

func (i Identity) String() string {
	if i.Account == "" {
		return i.ARN
	}
	return fmt.Sprintf("%s (account %s)", i.ARN, i.Account)
}

// IdentityChecker is implemented by stores that authenticate against a
// remote service and can report who they are authenticated as.
type IdentityChecker interface {
	Identity(ctx context.Context) (Identity, error)
}

// Identity calls STS GetCallerIdentity with the store's credentials.
func (s *AWSSecretsManagerStore) Identity(ctx context.Context) (Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.identity.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		if isAuthError(err) {
			return Identity{}, s.handleError(err, "", "")
		}
		return Identity{}, fmt.Errorf("failed to get caller identity: %w", err)
	}
	return Identity{
		Account: aws.ToString(out.Account),
		ARN:     aws.ToString(out.Arn),
	}, nil
}
