package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/llehouerou/drift/internal/config"
	"github.com/llehouerou/drift/internal/errmsg"
	"github.com/llehouerou/drift/internal/lastfm"
	"github.com/llehouerou/drift/internal/mpris"
	"github.com/llehouerou/drift/internal/playback"
	"github.com/llehouerou/drift/internal/player"
	"github.com/llehouerou/drift/internal/playqueue"
	"github.com/llehouerou/drift/internal/presence"
	"github.com/llehouerou/drift/internal/scrobble"
	"github.com/llehouerou/drift/internal/settings"
	"github.com/llehouerou/drift/internal/state"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "drift",
	})

	if err := run(logger); err != nil {
		logger.Fatal(errmsg.Format(errmsg.OpInitialize, err))
	}
}

func run(logger *log.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	st, err := state.Open()
	if err != nil {
		return err
	}
	defer st.Close()

	store, err := settings.New(cfg, st)
	if err != nil {
		return err
	}
	defer store.Close()

	// Config file edits move the integration gates without a restart.
	stopWatch, err := config.Watch(func(next *config.Config) {
		if err := store.ReloadConfig(next); err != nil {
			logger.Warn("failed to apply config change", "err", err)
		}
	})
	if err != nil {
		logger.Warn("config watch unavailable", "err", err)
	} else {
		defer stopWatch()
	}

	engine := playback.New(player.New(), st, logger)
	defer engine.Close()

	// Last.fm client, authenticated from the saved session when linked.
	var lfm *lastfm.Client
	if cfg.HasLastfmConfig() {
		lfm = lastfm.New(cfg.Lastfm.APIKey, cfg.Lastfm.APISecret)
		if session, err := st.GetLastfmSession(); err == nil && session != nil {
			lfm.SetSessionKey(session.SessionKey)
		}
	}

	manager := presence.NewManager(st, logger)
	if cfg.HasDiscordConfig() {
		manager.Register(presence.NewDiscord(cfg.Discord.AppID, logger),
			func(s settings.Snapshot) bool { return s.DiscordEnabled })
	}
	if lfm != nil {
		scrobbling := func() bool { return store.Current().ScrobblingEnabled }
		nowPlaying := func() bool { return store.Current().NowPlayingEnabled }
		manager.Register(scrobble.NewIntegration(lfm, st, scrobbling, nowPlaying, logger),
			func(s settings.Snapshot) bool {
				return s.LastfmLinked && (s.ScrobblingEnabled || s.NowPlayingEnabled)
			})
	}
	manager.Register(mpris.NewIntegration(engine, logger),
		func(s settings.Snapshot) bool { return s.MPRISEnabled })

	manager.Start(store)
	defer manager.Close()
	go manager.Run(engine.Subscribe())

	if lfm != nil {
		reconciler := scrobble.NewReconciler(lfm, st, logger)
		reconciler.Start()
		defer reconciler.Stop()
	}

	retention := time.Duration(cfg.ListenRetentionDays()) * 24 * time.Hour
	if err := st.DeleteOldListens(retention); err != nil {
		logger.Warn("failed to prune old listens", "err", err)
	}

	if store.Current().RestoreOnLaunch {
		if err := engine.Restore(); err != nil {
			logger.Warn(errmsg.Format(errmsg.OpPlaybackRestore, err))
		} else if t := engine.CurrentTrack(); t != nil {
			logger.Info("restored session", "track", t.Title, "queue", engine.QueueLen())
		}
	}

	// Suspend on SIGINT/SIGTERM so the session survives the next launch.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		runShell(engine, store, st, lfm, cfg.MusicFolder, logger)
		close(done)
	}()

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig)
	case <-done:
	}

	if err := engine.Suspend(); err != nil {
		logger.Warn(errmsg.Format(errmsg.OpPlaybackSuspend, err))
	}
	return nil
}

// runShell reads commands from stdin until quit or EOF.
func runShell(engine playback.Service, store *settings.Store, st state.Interface, lfm *lastfm.Client, musicFolder string, logger *log.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("drift ready. Type 'help' for commands.")

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		cmd, args := fields[0], fields[1:]

		switch cmd {
		case "quit", "exit":
			return
		case "help":
			printHelp()
		case "play":
			if len(args) == 0 {
				report(errmsg.OpPlaybackStart, engine.Play())
				continue
			}
			tracks, err := scanTracks(args, musicFolder)
			if err != nil {
				fmt.Println(errmsg.Format(errmsg.OpQueueLoad, err))
				continue
			}
			report(errmsg.OpPlaybackStart, engine.PlayTracks(tracks, 0, engine.Shuffle()))
		case "add":
			tracks, err := scanTracks(args, musicFolder)
			if err != nil {
				fmt.Println(errmsg.Format(errmsg.OpQueueAdd, err))
				continue
			}
			engine.AddToQueue(tracks...)
			fmt.Printf("added %d tracks\n", len(tracks))
		case "next":
			report(errmsg.OpPlaybackNext, engine.Next())
		case "prev":
			report(errmsg.OpPlaybackPrev, engine.Previous())
		case "pause":
			report(errmsg.OpPlaybackPause, engine.Pause())
		case "resume":
			report(errmsg.OpPlaybackResume, engine.Resume())
		case "toggle":
			report(errmsg.OpPlaybackPause, engine.Toggle())
		case "stop":
			report(errmsg.OpPlaybackStop, engine.Stop())
		case "jump":
			idx, err := strconv.Atoi(argOr(args, 0, ""))
			if err != nil {
				fmt.Println("usage: jump <index>")
				continue
			}
			report(errmsg.OpQueueJump, engine.JumpTo(idx))
		case "rm":
			idx, err := strconv.Atoi(argOr(args, 0, ""))
			if err != nil {
				fmt.Println("usage: rm <index>")
				continue
			}
			report(errmsg.OpQueueRemove, engine.RemoveFromQueue(idx))
		case "clear":
			engine.ClearQueue()
		case "seek":
			secs, err := strconv.Atoi(argOr(args, 0, ""))
			if err != nil {
				fmt.Println("usage: seek <seconds>")
				continue
			}
			report(errmsg.OpPlaybackSeek, engine.SeekTo(time.Duration(secs)*time.Second))
		case "vol":
			pct, err := strconv.Atoi(argOr(args, 0, ""))
			if err != nil {
				fmt.Println("usage: vol <0-100>")
				continue
			}
			report(errmsg.OpPlaybackVolume, engine.SetVolume(float64(pct)/100))
		case "mute":
			report(errmsg.OpPlaybackVolume, engine.ToggleMute())
		case "shuffle":
			fmt.Printf("shuffle %v\n", onOff(engine.ToggleShuffle()))
		case "repeat":
			fmt.Printf("repeat %s\n", engine.CycleRepeatMode())
		case "queue":
			printQueue(engine)
		case "status":
			printStatus(engine)
		case "listens":
			pending, err := st.PendingListens()
			if err != nil {
				fmt.Println(errmsg.Format(errmsg.OpScrobbleHistory, err))
				continue
			}
			if len(pending) == 0 {
				fmt.Println("no pending scrobbles")
				continue
			}
			for _, l := range pending {
				fmt.Printf("%s - %s (attempts: %d)\n", l.Artist, l.Track, l.Attempts)
			}
		case "purge-listens":
			if err := st.PurgeListens(); err != nil {
				fmt.Println(errmsg.Format(errmsg.OpStateClear, err))
				continue
			}
			fmt.Println("listen history cleared")
		case "discord":
			toggleSetting(args, store.SetDiscordEnabled)
		case "scrobbling":
			toggleSetting(args, store.SetScrobblingEnabled)
		case "link-lastfm":
			if lfm == nil {
				fmt.Println("last.fm is not configured; set api_key and api_secret in config.toml")
				continue
			}
			linkLastfm(lfm, st, store, logger)
		case "unlink-lastfm":
			if err := st.DeleteLastfmSession(); err != nil {
				fmt.Println(errmsg.Format(errmsg.OpScrobbleAuth, err))
				continue
			}
			if lfm != nil {
				lfm.SetSessionKey("")
			}
			store.SetLastfmLinked(false)
			fmt.Println("unlinked last.fm account")
		default:
			fmt.Printf("unknown command %q, try 'help'\n", cmd)
		}
	}
}

func printHelp() {
	fmt.Print(`commands:
  play [path ...]   play files or folders (no args: resume)
  add <path ...>    append files or folders to the queue
  next / prev       navigate the queue
  pause / resume    pause or resume playback
  toggle / stop     toggle play-pause, or stop
  jump <index>      play the queue entry at index
  rm <index>        remove the queue entry at index
  clear             clear the queue
  seek <seconds>    seek within the current track
  vol <0-100>       set volume
  mute              toggle mute
  shuffle           toggle shuffle
  repeat            cycle repeat mode (off/all/one)
  queue / status    show the queue or playback status
  listens           show scrobbles awaiting delivery
  purge-listens     clear the listen history
  discord on|off    toggle Discord rich presence
  scrobbling on|off toggle Last.fm scrobbling
  link-lastfm       link a Last.fm account
  unlink-lastfm     forget the linked Last.fm account
  quit              save the session and exit
`)
}

func printQueue(engine playback.Service) {
	tracks := engine.QueueTracks()
	if len(tracks) == 0 {
		fmt.Println("queue is empty")
		return
	}
	current := engine.QueueIndex()
	for i, t := range tracks {
		marker := "  "
		if i == current {
			marker = "> "
		}
		fmt.Printf("%s%3d  %s - %s\n", marker, i, t.Artist, t.Title)
	}
}

func printStatus(engine playback.Service) {
	t := engine.CurrentTrack()
	if t == nil {
		fmt.Println("nothing queued")
		return
	}
	fmt.Printf("%s  %s - %s  [%s / %s]  repeat=%s shuffle=%s vol=%d%%\n",
		engine.State(), t.Artist, t.Title,
		formatDuration(engine.Position()), formatDuration(engine.Duration()),
		engine.RepeatMode(), onOff(engine.Shuffle()), int(engine.Volume()*100))
}

func linkLastfm(lfm *lastfm.Client, st state.Interface, store *settings.Store, logger *log.Logger) {
	token, err := lfm.GetToken()
	if err != nil {
		fmt.Println(errmsg.Format(errmsg.OpScrobbleAuth, err))
		return
	}
	authURL := lfm.GetAuthURL(token)

	srv, err := lastfm.StartAuthServer()
	if err != nil {
		logger.Debug("auth callback server unavailable", "err", err)
	} else {
		defer srv.Shutdown()
	}

	fmt.Printf("Authorize drift at:\n  %s\n", authURL)
	if err := lastfm.OpenBrowser(authURL); err != nil {
		logger.Debug("could not open browser", "err", err)
	}

	if srv != nil {
		select {
		case t := <-srv.TokenChan():
			if t != "" {
				token = t
			}
		case <-time.After(3 * time.Minute):
			fmt.Println("no authorization callback received, trying the pending token")
		}
	}

	username, sessionKey, err := lfm.GetSession(token)
	if err != nil {
		fmt.Println(errmsg.Format(errmsg.OpScrobbleAuth, err))
		return
	}
	if err := st.SaveLastfmSession(username, sessionKey); err != nil {
		fmt.Println(errmsg.Format(errmsg.OpScrobbleAuth, err))
		return
	}
	store.SetLastfmLinked(true)
	fmt.Printf("linked last.fm account %q\n", username)
}

func toggleSetting(args []string, set func(bool) error) {
	switch argOr(args, 0, "") {
	case "on":
		report(errmsg.OpIntegrationToggle, set(true))
	case "off":
		report(errmsg.OpIntegrationToggle, set(false))
	default:
		fmt.Println("usage: <setting> on|off")
	}
}

var nextTrackID int64

// scanTracks expands files and directories into queue tracks. Relative
// paths that don't exist locally are resolved against the configured
// music folder. Metadata stays minimal: the filename stands in for the
// title, the parent folders for artist and album.
func scanTracks(paths []string, musicFolder string) ([]playqueue.Track, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil && musicFolder != "" && !filepath.IsAbs(p) {
			p = filepath.Join(musicFolder, p)
			info, err = os.Stat(p)
		}
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if isAudioFile(p) {
				files = append(files, p)
			}
			continue
		}
		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && isAudioFile(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no audio files found")
	}
	sort.Strings(files)

	tracks := make([]playqueue.Track, 0, len(files))
	for _, f := range files {
		nextTrackID++
		abs, err := filepath.Abs(f)
		if err != nil {
			abs = f
		}
		dir := filepath.Dir(abs)
		tracks = append(tracks, playqueue.Track{
			ID:     nextTrackID,
			Path:   abs,
			Title:  strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs)),
			Album:  filepath.Base(dir),
			Artist: filepath.Base(filepath.Dir(dir)),
		})
	}
	return tracks, nil
}

func isAudioFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3", ".flac":
		return true
	default:
		return false
	}
}

func report(op errmsg.Op, err error) {
	if err != nil {
		fmt.Println(errmsg.Format(op, err))
	}
}

func argOr(args []string, i int, def string) string {
	if i < len(args) {
		return args[i]
	}
	return def
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d", m, s)
}
