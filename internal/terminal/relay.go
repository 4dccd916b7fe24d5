// Copyright 2026 The CyberCode Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package terminal

import (
	"io"
	"sync"

	"github.com/cybercodeedulabs/cybercode-backend/internal/host"
)

// relay copies bytes between conn and proc until either side ends, then
// tears both down. It reports whether the remote side ended first, in
// which case the client is sent SessionTerminated before its connection
// is closed.
func relay(conn io.ReadWriteCloser, proc host.Process) (remoteExited bool) {
	done := make(chan struct{})
	var doneOnce sync.Once
	var remote bool
	finish := func(byRemote bool) {
		doneOnce.Do(func() {
			remote = byRemote
			close(done)
		})
	}

	var output, input sync.WaitGroup

	// Remote output to the client.
	output.Add(1)
	go func() {
		defer output.Done()
		buf := make([]byte, bufferSize)
		for {
			n, err := proc.Read(buf)
			if n > 0 {
				if _, werr := conn.Write(buf[:n]); werr != nil {
					finish(false)
					return
				}
			}
			if err != nil {
				finish(true)
				return
			}
		}
	}()

	// Client input to the remote shell.
	input.Add(1)
	go func() {
		defer input.Done()
		buf := make([]byte, bufferSize)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				if _, werr := proc.Write(buf[:n]); werr != nil {
					finish(true)
					return
				}
			}
			if err != nil {
				finish(false)
				return
			}
		}
	}()

	<-done

	// Closing the process kills it and unblocks the output reader, so the
	// notice below is the last thing written to the client.
	_ = proc.Close()
	output.Wait()
	if remote {
		_, _ = conn.Write([]byte(SessionTerminated))
	}
	_ = conn.Close()
	input.Wait()

	return remote
}
