package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"

	"github.com/sumithkumar07/aetherflow/internal/config"
	"github.com/sumithkumar07/aetherflow/internal/store"
	"github.com/sumithkumar07/aetherflow/internal/vault"
)

// runSecret manages agent credentials: ciphertext in the store, plaintext
// only ever in memory.
func runSecret(args []string) error {
	if len(args) == 0 {
		printSecretUsage()
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Vault.Passphrase == "" {
		return fmt.Errorf("vault passphrase is required (AETHERFLOW_VAULT_PASSPHRASE)")
	}
	v := vault.New(cfg.Vault.Passphrase)

	db, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	switch args[0] {
	case "list":
		return secretList(db)
	case "set":
		return secretSet(db, v, args[1:])
	case "get":
		return secretGet(db, v, args[1:])
	case "delete":
		return secretDelete(db, args[1:])
	default:
		printSecretUsage()
		return fmt.Errorf("unknown secret command: %s", args[0])
	}
}

func printSecretUsage() {
	fmt.Fprintf(os.Stderr, `Usage: aetherflow secret <command>

Commands:
  list                                    List secrets (metadata only)
  set <name> --value <str> [--agent <role>]   Store a secret
  get <id>                                Print a secret's plaintext
  delete <id>                             Delete a secret
`)
}

func secretList(db *store.Store) error {
	secrets, err := db.ListSecrets()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tAGENT\tUPDATED")
	for _, s := range secrets {
		agent := s.AgentID
		if agent == "" {
			agent = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.Name, agent, s.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func secretSet(db *store.Store, v *vault.Vault, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing secret name")
	}
	name := args[0]

	var value, agentID string
	for i := 1; i < len(args); i++ {
		switch args[i] {
		case "--value":
			if i+1 >= len(args) {
				return fmt.Errorf("missing value for --value")
			}
			i++
			value = args[i]
		case "--agent":
			if i+1 >= len(args) {
				return fmt.Errorf("missing value for --agent")
			}
			i++
			agentID = args[i]
		}
	}
	if value == "" {
		return fmt.Errorf("--value is required")
	}

	ciphertext, nonce, err := v.Encrypt([]byte(value))
	if err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}

	secret := &store.Secret{
		ID:      uuid.New().String(),
		Name:    name,
		AgentID: agentID,
		Value:   ciphertext,
		Nonce:   nonce,
	}
	if err := db.SaveSecret(secret); err != nil {
		return err
	}
	fmt.Printf("Secret %s stored (%s)\n", name, secret.ID)
	return nil
}

func secretGet(db *store.Store, v *vault.Vault, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing secret id")
	}

	secret, err := db.GetSecret(args[0])
	if err != nil {
		return err
	}
	if secret == nil {
		return fmt.Errorf("secret not found: %s", args[0])
	}

	plaintext, err := v.Decrypt(secret.Value, secret.Nonce)
	if err != nil {
		return fmt.Errorf("decrypt: %w", err)
	}
	fmt.Println(string(plaintext))
	return nil
}

func secretDelete(db *store.Store, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing secret id")
	}
	if err := db.DeleteSecret(args[0]); err != nil {
		return err
	}
	fmt.Println("Secret deleted")
	return nil
}
