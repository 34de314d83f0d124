package harness

import (
	"context"
	"time"

	"nrtstress/internal/serverproc"
)

// Server is a started server-under-test.
type Server interface {
	Stop(grace time.Duration) error
}

// Launcher starts the server-under-test.
type Launcher interface {
	Launch(ctx context.Context) (Server, error)
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context) (Server, error)

func (f LauncherFunc) Launch(ctx context.Context) (Server, error) {
	return f(ctx)
}

// ProcessLauncher launches the server as a child process.
func ProcessLauncher(l serverproc.Launcher) Launcher {
	return LauncherFunc(func(ctx context.Context) (Server, error) {
		p, err := l.Launch(ctx)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}

type attached struct{}

func (attached) Stop(time.Duration) error { return nil }

// Attach targets an already running server; Stop does nothing.
func Attach() Launcher {
	return LauncherFunc(func(context.Context) (Server, error) {
		return attached{}, nil
	})
}
