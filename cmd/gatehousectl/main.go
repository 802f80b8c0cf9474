package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type client struct {
	BaseURL   string
	Token     string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func (c *client) call(method, path string, payload any) error {
	var body []byte
	if payload != nil {
		body, _ = json.Marshal(payload)
	}
	status, out, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	if status/100 != 2 {
		return fmt.Errorf("fallo: status=%d body=%s", status, string(out))
	}
	c.print(status, out)
	return nil
}

func main() {
	var (
		baseURL = envOr("GATEHOUSE_URL", "http://localhost:8080")
		token   = envOr("GATEHOUSE_TOKEN", "")
		out     = envOr("GATEHOUSE_OUT", "text")
	)

	root := &cobra.Command{
		Use:   "gatehousectl",
		Short: "CLI cliente para Gatehouse (/v1)",
	}
	root.PersistentFlags().StringVar(&baseURL, "url", baseURL, "URL base del servidor (env GATEHOUSE_URL)")
	root.PersistentFlags().StringVar(&token, "token", token, "Access token (env GATEHOUSE_TOKEN)")
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")

	cl := &client{HTTP: &http.Client{Timeout: 30 * time.Second}}
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		cl.BaseURL = baseURL
		cl.Token = token
		cl.OutFormat = out
	}

	// signup / login con credenciales locales
	var identifier, pass string
	signupCmd := &cobra.Command{
		Use:   "signup",
		Short: "Crear un usuario con credenciales locales",
		RunE: func(cmd *cobra.Command, args []string) error {
			if identifier == "" || pass == "" {
				return fmt.Errorf("--identifier y --password son requeridos")
			}
			return cl.call("POST", "/v1/auth/signup", map[string]string{
				"identifier": identifier, "password": pass,
			})
		},
	}
	signupCmd.Flags().StringVar(&identifier, "identifier", "", "Identificador (email o username)")
	signupCmd.Flags().StringVar(&pass, "password", "", "Password")

	var loginID, loginPass string
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Login con credenciales locales",
		RunE: func(cmd *cobra.Command, args []string) error {
			if loginID == "" || loginPass == "" {
				return fmt.Errorf("--identifier y --password son requeridos")
			}
			return cl.call("POST", "/v1/auth/login", map[string]string{
				"identifier": loginID, "password": loginPass,
			})
		},
	}
	loginCmd.Flags().StringVar(&loginID, "identifier", "", "Identificador")
	loginCmd.Flags().StringVar(&loginPass, "password", "", "Password")

	var refreshToken string
	refreshCmd := &cobra.Command{
		Use:   "refresh",
		Short: "Rotar el par de tokens con un refresh token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if refreshToken == "" {
				return fmt.Errorf("--refresh-token es requerido")
			}
			return cl.call("POST", "/v1/auth/refresh", map[string]string{
				"refresh_token": refreshToken,
			})
		},
	}
	refreshCmd.Flags().StringVar(&refreshToken, "refresh-token", "", "Refresh token")

	introspectCmd := &cobra.Command{
		Use:   "introspect",
		Short: "Validar el access token y mostrar sus claims",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.call("GET", "/v1/auth/introspect", nil)
		},
	}

	meCmd := &cobra.Command{
		Use:   "me",
		Short: "Mostrar el usuario del access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.call("GET", "/v1/auth/me", nil)
		},
	}

	var userID string
	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "Listar providers vinculados al usuario",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user es requerido")
			}
			return cl.call("GET", "/v1/users/"+userID+"/providers", nil)
		},
	}
	providersCmd.Flags().StringVar(&userID, "user", "", "ID interno del usuario")

	var unlinkUser, unlinkProvider string
	unlinkCmd := &cobra.Command{
		Use:   "unlink",
		Short: "Desvincular un provider del usuario",
		RunE: func(cmd *cobra.Command, args []string) error {
			if unlinkUser == "" || unlinkProvider == "" {
				return fmt.Errorf("--user y --provider son requeridos")
			}
			return cl.call("DELETE", "/v1/users/"+unlinkUser+"/providers/"+unlinkProvider, nil)
		},
	}
	unlinkCmd.Flags().StringVar(&unlinkUser, "user", "", "ID interno del usuario")
	unlinkCmd.Flags().StringVar(&unlinkProvider, "provider", "", "Provider (google|github|discord|microsoft)")

	root.AddCommand(signupCmd, loginCmd, refreshCmd, introspectCmd, meCmd, providersCmd, unlinkCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
