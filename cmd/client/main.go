package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sakya-app/sakya/internal/client"
	"github.com/sakya-app/sakya/internal/config"
	"github.com/sakya-app/sakya/internal/crypto"
	"github.com/sakya-app/sakya/internal/logger"
	"github.com/sakya-app/sakya/internal/pairing"
	"github.com/sakya-app/sakya/models"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

// state is the client's persisted identity: which device it is, its
// session token, its long-lived key-exchange secret, and the document keys
// of the projects it syncs. Keys are stored hex-encoded; the file lives in
// the data directory and should be protected by filesystem permissions.
type state struct {
	AccountID      string            `json:"account_id"`
	DeviceID       string            `json:"device_id"`
	SessionToken   string            `json:"session_token"`
	ExchangeSecret string            `json:"exchange_secret"`
	Projects       map[string]string `json:"projects"`
}

// app bundles the wired client pieces for the interactive command loop.
type app struct {
	cfg    *config.ClientConfig
	log    *logger.Logger
	api    *client.IdentityAPI
	engine *client.Engine
	syncer *client.Syncer
	prov   *client.Provisioner
	st     *state
	stdin  *bufio.Reader
}

func main() {
	printBuildInfo()

	cfg, err := config.GetClientConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error getting configs: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewFileLogger("sakya-client", cfg.DataDir)

	st, err := loadState(cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("error loading client state")
	}

	a := &app{
		cfg:   cfg,
		log:   log,
		api:   client.NewIdentityAPI(cfg, log),
		st:    st,
		stdin: bufio.NewReader(os.Stdin),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if st.SessionToken == "" {
		if err := a.bootstrap(ctx); err != nil {
			log.Fatal().Err(err).Msg("bootstrap failed")
		}
		if err := saveState(cfg.DataDir, st); err != nil {
			log.Fatal().Err(err).Msg("error saving client state")
		}
	}

	exchange, err := a.exchangeKeys()
	if err != nil {
		log.Fatal().Err(err).Msg("error restoring exchange keypair")
	}

	a.engine = client.NewEngine(st.DeviceID, log)
	for projectID, hexKey := range st.Projects {
		keyBytes, err := hex.DecodeString(hexKey)
		if err != nil {
			log.Fatal().Str("project_id", projectID).Msg("corrupt project key in state file")
		}
		key, err := crypto.DocumentKeyFromBytes(keyBytes)
		if err != nil {
			log.Fatal().Err(err).Str("project_id", projectID).Msg("invalid project key")
		}
		a.engine.EnableProject(projectID, key, 0)
	}

	a.engine.OnUpdate(func(projectID, deviceID string, sequence int64, plaintext []byte) {
		fmt.Printf("[%s] %s#%d: %s\n", projectID, deviceID, sequence, plaintext)
	})
	a.engine.OnSnapshot(func(projectID, snapshotID string, plaintext []byte) {
		fmt.Printf("[%s] snapshot %s: %d bytes\n", projectID, snapshotID, len(plaintext))
	})

	a.syncer = client.NewSyncer(a.engine, cfg, st.SessionToken, log)

	a.prov = client.NewProvisioner(st.DeviceID, exchange, a.syncer, log)
	a.prov.Attach(a.engine)
	a.prov.OnRotatedKeys(a.adoptKeys)

	go a.commandLoop(ctx)

	if err := a.syncer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("sync engine stopped")
	}
}

// bootstrap establishes the device's identity on first run: a magic link
// login for the account's first device, or pairing against a device that
// already has one.
func (a *app) bootstrap(ctx context.Context) error {
	choice, err := a.prompt("login with email (l) or pair with an existing device (p)? ")
	if err != nil {
		return err
	}

	switch choice {
	case "p":
		return a.joinPairing(ctx)
	default:
		return a.login(ctx)
	}
}

// login walks the magic link flow on the terminal. Against a self-hosted
// relay the token comes back in the response; a hosted deployment mails it,
// so the user pastes it either way.
func (a *app) login(ctx context.Context) error {
	email, err := a.prompt("email: ")
	if err != nil {
		return err
	}

	minted, err := a.api.RequestMagicLink(ctx, email)
	if err != nil {
		return err
	}
	fmt.Printf("magic link token: %s\n", minted)

	rawToken, err := a.prompt("paste token to confirm login: ")
	if err != nil {
		return err
	}

	keys, err := crypto.GenerateDeviceKeyPair()
	if err != nil {
		return err
	}

	device := models.Device{
		ID:        keys.DeviceID,
		Name:      deviceName(),
		PublicKey: keys.PublicKey,
	}

	account, session, err := a.api.VerifyMagicLink(ctx, rawToken, device)
	if err != nil {
		return err
	}

	fmt.Printf("logged in as %s, device %s\n", account.Email, device.ID)
	a.st.AccountID = account.ID
	a.st.DeviceID = device.ID
	a.st.SessionToken = session
	return nil
}

// joinPairing is the new device's side of pairing: parse the code shown by
// the existing device, hand back this session's public key, and unseal the
// provisioning envelope pasted in return. The provisioned session token
// authenticates as the granting device until the next magic link login, so
// the final step registers this device under its own identity.
func (a *app) joinPairing(ctx context.Context) error {
	encoded, err := a.prompt("pairing code: ")
	if err != nil {
		return err
	}
	code, err := pairing.ParseCode(encoded)
	if err != nil {
		return err
	}

	session, err := pairing.NewSession(0)
	if err != nil {
		return err
	}

	fmt.Printf("response key (enter on the other device): %s\n",
		base64.URLEncoding.EncodeToString(session.PublicKey()))

	sealed, err := a.prompt("paste sealed envelope: ")
	if err != nil {
		return err
	}
	envData, err := base64.URLEncoding.DecodeString(sealed)
	if err != nil {
		return fmt.Errorf("undecodable envelope: %w", err)
	}
	var env crypto.Envelope
	if err := json.Unmarshal(envData, &env); err != nil {
		return fmt.Errorf("undecodable envelope: %w", err)
	}

	payload, err := session.OpenProvisioning(code.PublicKey, env)
	if err != nil {
		return err
	}

	a.st.AccountID = payload.AccountID
	a.st.SessionToken = payload.SessionToken
	a.st.Projects = make(map[string]string, len(payload.DocumentKeys))
	for _, pk := range payload.DocumentKeys {
		a.st.Projects[pk.ProjectID] = hex.EncodeToString(pk.Key)
	}

	keys, err := crypto.GenerateDeviceKeyPair()
	if err != nil {
		return err
	}
	registered, err := a.api.RegisterDevice(ctx, a.st.SessionToken, models.Device{
		ID:        keys.DeviceID,
		Name:      deviceName(),
		PublicKey: keys.PublicKey,
	})
	if err != nil {
		return err
	}
	a.st.DeviceID = registered.ID

	fmt.Printf("paired into account %s as device %s (%d projects)\n",
		payload.AccountID, registered.ID, len(payload.DocumentKeys))
	return nil
}

// hostPairing is the existing device's side: show a pairing code (and drop
// a scannable PNG next to the state file), then seal the account's keys
// and session for the response key the new device shows.
func (a *app) hostPairing() error {
	session, err := pairing.NewSession(0)
	if err != nil {
		return err
	}
	defer session.Discard()

	code := session.Code(a.st.DeviceID, a.cfg.ServerURL)
	encoded, err := code.Encode()
	if err != nil {
		return err
	}
	fmt.Printf("pairing code: %s\n", encoded)

	if png, err := code.QRPNG(256); err == nil {
		path := filepath.Join(a.cfg.DataDir, "pairing.png")
		if err := os.WriteFile(path, png, 0o600); err == nil {
			fmt.Printf("QR code written to %s\n", path)
		}
	}

	response, err := a.prompt("peer response key: ")
	if err != nil {
		return err
	}
	peerPublic, err := base64.URLEncoding.DecodeString(response)
	if err != nil {
		return fmt.Errorf("undecodable response key: %w", err)
	}

	payload := pairing.ProvisioningPayload{
		AccountID:    a.st.AccountID,
		SessionToken: a.st.SessionToken,
	}
	for projectID, hexKey := range a.st.Projects {
		keyBytes, err := hex.DecodeString(hexKey)
		if err != nil {
			return fmt.Errorf("corrupt project key for %s", projectID)
		}
		payload.DocumentKeys = append(payload.DocumentKeys, pairing.ProjectKey{
			ProjectID: projectID,
			Key:       keyBytes,
		})
	}

	env, err := session.SealProvisioning(peerPublic, payload)
	if err != nil {
		return err
	}
	envData, err := json.Marshal(env)
	if err != nil {
		return err
	}

	fmt.Printf("sealed envelope (paste on the new device): %s\n",
		base64.URLEncoding.EncodeToString(envData))
	return nil
}

// commandLoop reads interactive commands. Plain lines of the form
// "<project-id> <text>" become encrypted updates.
func (a *app) commandLoop(ctx context.Context) {
	fmt.Println("commands: /devices, /remove <id>, /rotate, /pair, /enable <project-id>, or '<project-id> <text>'")

	for {
		line, err := a.prompt("")
		if err != nil {
			return
		}
		if line == "" {
			continue
		}

		cmd, arg, _ := strings.Cut(line, " ")
		switch cmd {
		case "/devices":
			a.listDevices(ctx)
		case "/remove":
			a.removeDevice(ctx, arg)
		case "/rotate":
			a.rotate()
		case "/pair":
			if err := a.hostPairing(); err != nil {
				fmt.Printf("pairing failed: %v\n", err)
			}
		case "/enable":
			a.enableProject(arg)
		default:
			if arg == "" {
				fmt.Println("usage: <project-id> <text>")
				continue
			}
			if err := a.syncer.SendUpdate(cmd, []byte(arg)); err != nil {
				a.log.Err(err).Str("project_id", cmd).Msg("update send failed")
				fmt.Printf("send failed: %v\n", err)
			}
		}
	}
}

func (a *app) listDevices(ctx context.Context) {
	devices, err := a.api.ListDevices(ctx, a.st.SessionToken)
	if err != nil {
		fmt.Printf("device listing failed: %v\n", err)
		return
	}
	for _, d := range devices {
		marker := " "
		if d.ID == a.st.DeviceID {
			marker = "*"
		}
		fmt.Printf("%s %s  %s  last seen %s\n", marker, d.ID, d.Name, d.LastSeen.Format("2006-01-02 15:04"))
	}
}

// removeDevice revokes the device and immediately rotates every project
// key, so the removed device's copies only ever decrypt history.
func (a *app) removeDevice(ctx context.Context, deviceID string) {
	if deviceID == "" {
		fmt.Println("usage: /remove <device-id>")
		return
	}
	if err := a.api.RemoveDevice(ctx, a.st.SessionToken, deviceID); err != nil {
		fmt.Printf("device removal failed: %v\n", err)
		return
	}
	a.prov.Forget(deviceID)
	fmt.Printf("device %s removed, rotating keys\n", deviceID)
	a.rotate()
}

func (a *app) rotate() {
	rotated, err := a.prov.Rotate(a.engine.EnabledProjects())
	if err != nil {
		fmt.Printf("rotation failed: %v\n", err)
		return
	}
	a.adoptKeys(rotated)
	fmt.Printf("rotated %d project keys\n", len(rotated))
}

func (a *app) enableProject(projectID string) {
	if projectID == "" {
		fmt.Println("usage: /enable <project-id>")
		return
	}

	key, err := crypto.NewDocumentKey()
	if err != nil {
		fmt.Printf("key generation failed: %v\n", err)
		return
	}
	a.st.Projects[projectID] = hex.EncodeToString(key.Bytes())
	a.engine.EnableProject(projectID, key, 0)
	if err := saveState(a.cfg.DataDir, a.st); err != nil {
		a.log.Err(err).Msg("error saving client state")
	}
	if err := a.syncer.JoinProject(projectID); err != nil {
		fmt.Printf("project enabled; room join deferred to reconnect (%v)\n", err)
		return
	}
	fmt.Printf("project %s enabled\n", projectID)
}

// adoptKeys installs a rotated key set, both when this device initiated
// the rotation and when a peer's rotation arrives over the wire.
func (a *app) adoptKeys(keys []pairing.ProjectKey) {
	for _, pk := range keys {
		key, err := crypto.DocumentKeyFromBytes(pk.Key)
		if err != nil {
			a.log.Err(err).Str("project_id", pk.ProjectID).Msg("rotated key rejected")
			continue
		}
		if !a.engine.ReplaceProjectKey(pk.ProjectID, key) {
			a.engine.EnableProject(pk.ProjectID, key, 0)
		}
		a.st.Projects[pk.ProjectID] = hex.EncodeToString(pk.Key)
	}
	if err := saveState(a.cfg.DataDir, a.st); err != nil {
		a.log.Err(err).Msg("error saving client state")
	}
}

// exchangeKeys restores the device's long-lived X25519 keypair, minting
// and persisting a fresh secret on first use.
func (a *app) exchangeKeys() (*crypto.ExchangeKeyPair, error) {
	if a.st.ExchangeSecret == "" {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
		a.st.ExchangeSecret = hex.EncodeToString(secret)
		if err := saveState(a.cfg.DataDir, a.st); err != nil {
			return nil, err
		}
	}

	secret, err := hex.DecodeString(a.st.ExchangeSecret)
	if err != nil {
		return nil, fmt.Errorf("corrupt exchange secret: %w", err)
	}
	return crypto.ExchangeKeyPairFromSecret(secret)
}

func (a *app) prompt(label string) (string, error) {
	if label != "" {
		fmt.Print(label)
	}
	line, err := a.stdin.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func deviceName() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "sakya-device"
	}
	return hostname
}

func statePath(dataDir string) string {
	return filepath.Join(dataDir, "state.json")
}

func loadState(dataDir string) (*state, error) {
	st := &state{Projects: map[string]string{}}

	data, err := os.ReadFile(statePath(dataDir))
	if errors.Is(err, os.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("corrupt state file: %w", err)
	}
	if st.Projects == nil {
		st.Projects = map[string]string{}
	}
	return st, nil
}

func saveState(dataDir string, st *state) error {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(statePath(dataDir), data, 0o600)
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}
	if buildDate == "" {
		buildDate = "N/A"
	}
	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
