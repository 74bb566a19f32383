package cmd

import (
	"fmt"
	"time"

	errors "github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	gcmd "github.com/Laisky/go-utils/v6/cmd"
	"github.com/Laisky/zap"
	"github.com/spf13/cobra"

	"github.com/Laisky/docstock/internal/stock"
	"github.com/Laisky/docstock/library/jwt"
	"github.com/Laisky/docstock/library/log"
)

var tokenCMD = &cobra.Command{
	Use:    "token",
	Short:  "token",
	Long:   `sign a bearer token with settings.auth.secret and print it`,
	Args:   gcmd.NoExtraArgs,
	PreRun: mustInitialize,
	Run: func(cmd *cobra.Command, args []string) {
		ttl, err := cmd.Flags().GetDuration("ttl")
		if err != nil {
			log.Logger.Panic("read --ttl", zap.Error(err))
		}

		token, err := signToken(
			gconfig.Shared.GetString("settings.auth.secret"),
			gconfig.Shared.GetString("user-id"),
			gconfig.Shared.GetString("username"),
			gconfig.Shared.GetString("role"),
			ttl,
		)
		if err != nil {
			log.Logger.Panic("sign token", zap.Error(err))
		}
		fmt.Println(token)
	},
}

func signToken(secret, userID, username, role string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("settings.auth.secret is empty")
	}
	if !stock.Role(role).Valid() {
		return "", errors.Errorf("unknown role %q", role)
	}

	codec, err := jwt.New([]byte(secret), tokenIssuer)
	if err != nil {
		return "", errors.Wrap(err, "new jwt codec")
	}
	return codec.Sign(userID, username, role, ttl)
}

func init() {
	tokenCMD.Flags().String("user-id", "", "profile id carried in the token")
	tokenCMD.Flags().String("username", "", "display name carried in the token")
	tokenCMD.Flags().String("role", string(stock.RoleUser), "`admin` or `user`")
	tokenCMD.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
	rootCMD.AddCommand(tokenCMD)
}
