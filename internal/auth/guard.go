package auth

import "github.com/rewired-gh/otawatch/internal/logger"

// The guards below are the only place hook faults are absorbed. Each returns the
// hook's neutral value when the hook fails or panics.

func guardCheck(check Check) (ok bool) {
	if check == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("Session check panicked: %v", r)
			ok = false
		}
	}()
	return check()
}

func guardAutoLogin(autoLogin func() (bool, error)) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("Automated login panicked: %v", r)
			ok = false
		}
	}()
	ok, err := autoLogin()
	if err != nil {
		logger.Warn("Automated login failed: %v", err)
		return false
	}
	return ok
}

func guardHook(name string, hook func() error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("%s hook panicked: %v", name, r)
		}
	}()
	if err := hook(); err != nil {
		logger.Warn("%s hook failed: %v", name, err)
	}
}

func guardProgress(progress func(int), secondsRemaining int) {
	defer func() {
		if r := recover(); r != nil {
			logger.Debug("Progress callback panicked: %v", r)
		}
	}()
	progress(max(0, secondsRemaining))
}
