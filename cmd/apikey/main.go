// Администрирование брендов и API ключей интеграций
//
//	apikey brand-create -id brand-1 -name "Brand"
//	apikey key-create -brand brand-1 -name shop
//	apikey key-list -brand brand-1
//	apikey key-disable -brand brand-1 -id <uuid>
//	apikey token -user staff-1 [-brands brand-1,brand-2] [-admin] [-ttl 24h]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	app "github.com/glkeru/loyalty/rewards/internal/app"
	"github.com/glkeru/loyalty/rewards/internal/config"
	model "github.com/glkeru/loyalty/rewards/internal/models"
	services "github.com/glkeru/loyalty/rewards/internal/services"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: apikey brand-create|key-create|key-list|key-disable|token [flags]")
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cmd, args := args[0], args[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)

	// токен не требует базы
	if cmd == "token" {
		user := fs.String("user", "", "dashboard user id")
		admin := fs.Bool("admin", false, "platform admin")
		brands := fs.String("brands", "", "comma separated brand ids")
		ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
		if err = fs.Parse(args); err != nil {
			return err
		}
		if *user == "" {
			return fmt.Errorf("-user is required")
		}
		if cfg.Auth.JWTSecret == "" {
			return fmt.Errorf("env AUTH_JWT_SECRET is not set")
		}
		token, err := services.NewJWTProvider(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer).Sign(
			model.Identity{UserID: *user, PlatformAdmin: *admin, Brands: brandList(*brands)},
			jwt.RegisteredClaims{
				IssuedAt:  jwt.NewNumericDate(time.Now()),
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(*ttl)),
			})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, token)
		return err
	}

	brand := fs.String("brand", "", "brand id")
	id := fs.String("id", "", "brand id (brand-create) or key id (key-disable)")
	name := fs.String("name", "", "brand or key name")
	if err = fs.Parse(args); err != nil {
		return err
	}

	rewards, err := app.Build(ctx, cfg, zap.NewNop())
	if err != nil {
		return err
	}
	defer rewards.Close()
	keys := rewards.APIKeys

	switch cmd {
	case "brand-create":
		b, err := keys.CreateBrand(ctx, *id, *name)
		if err != nil {
			return err
		}
		return printJSON(out, b)
	case "key-create":
		key, raw, err := keys.CreateKey(ctx, *brand, *name)
		if err != nil {
			return err
		}
		return printJSON(out, map[string]any{"key": key, "apiKey": raw})
	case "key-list":
		list, err := keys.ListKeys(ctx, *brand)
		if err != nil {
			return err
		}
		return printJSON(out, list)
	case "key-disable":
		keyID, err := uuid.Parse(*id)
		if err != nil {
			return fmt.Errorf("-id: %w", err)
		}
		if err = keys.DisableKey(ctx, *brand, keyID); err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, "disabled")
		return err
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func brandList(v string) []string {
	var list []string
	for _, id := range strings.Split(v, ",") {
		if id = strings.TrimSpace(id); id != "" {
			list = append(list, id)
		}
	}
	return list
}
