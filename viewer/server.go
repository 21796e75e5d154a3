// Copyright 2019 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Serves the flash layout SVGs written by goflash --flash-layout, and lets a
// browser wait for them to change.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/goflash/util"

	"github.com/fsnotify/fsnotify"
	"github.com/golang/glog"
	"github.com/labstack/echo"
)

var (
	portFlag = flag.Int("port", 8080, "Server HTTP port number")
	dirFlag  = flag.String("dir", ".", "Directory holding flash layout SVGs")
)

const (
	layoutExt   = ".svg"
	pollTimeout = 5 * time.Minute
)

type LayoutInfo struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

const indexPage = `<!DOCTYPE html>
<html><head><title>goflash layouts</title></head>
<body><div id="layouts"></div>
<script>
async function refresh(wait) {
  const resp = await fetch("/layouts?wait=" + wait);
  const layouts = await resp.json();
  const list = document.getElementById("layouts");
  list.replaceChildren();
  for (const l of layouts) {
    const title = document.createElement("h3");
    title.textContent = l.name;
    const img = document.createElement("img");
    img.setAttribute("src", "/layouts/" + encodeURIComponent(l.name));
    list.append(title, img);
  }
  refresh(true);
}
refresh(false);
</script></body></html>`

// Publishes a notification for every change to an SVG in dir.
func watchDirectoryChanges(dir string, broker *util.Broker) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		glog.Errorf("NewWatcher failed: %v", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		glog.Errorf("watcher.Add failed: %v", err)
		return
	}
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			glog.V(1).Infof("Watcher event: %v", event)
			if !strings.HasSuffix(event.Name, layoutExt) || event.Op == fsnotify.Chmod {
				continue
			}
			broker.Publish(util.Notification{
				Name:    filepath.Base(event.Name),
				Removed: event.Op&(fsnotify.Remove|fsnotify.Rename) != 0,
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			glog.Warningf("Watcher error: %v", err)
		}
	}
}

// Blocks until a layout changes, the client goes away or the poll times out.
func waitForLayouts(c echo.Context, broker *util.Broker, timeout time.Duration) {
	changed := broker.Subscribe()
	defer broker.Unsubscribe(changed)
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-timer.C:
		glog.V(1).Info("Timed out")
	case <-c.Request().Context().Done():
		glog.V(1).Info("Client disconnected")
	case n := <-changed:
		glog.V(1).Infof("%s changed", n.Name)
	}
}

func listLayouts(dir string) ([]LayoutInfo, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*"+layoutExt))
	if err != nil {
		return nil, err
	}
	layouts := []LayoutInfo{}
	for _, f := range files {
		st, err := os.Stat(f)
		if err != nil {
			continue
		}
		layouts = append(layouts, LayoutInfo{Name: filepath.Base(f), Size: st.Size(), Modified: st.ModTime()})
	}
	sort.Slice(layouts, func(i, j int) bool { return layouts[i].Name < layouts[j].Name })
	return layouts, nil
}

func newServer(dir string, broker *util.Broker, timeout time.Duration) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.GET("/", func(c echo.Context) error {
		return c.HTML(http.StatusOK, indexPage)
	})

	// Lists the layouts, after waiting for a change unless wait=false.
	e.GET("/layouts", func(c echo.Context) error {
		if c.QueryParam("wait") != "false" {
			waitForLayouts(c, broker, timeout)
		}
		layouts, err := listLayouts(dir)
		if err != nil {
			glog.Errorf("Listing layouts failed: %v", err)
			return err
		}
		return c.JSON(http.StatusOK, layouts)
	})

	e.GET("/layouts/:name", func(c echo.Context) error {
		name := c.Param("name")
		if name != filepath.Base(name) || !strings.HasSuffix(name, layoutExt) {
			return echo.ErrNotFound
		}
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			return echo.ErrNotFound
		}
		return c.File(path)
	})
	return e
}

func main() {
	flag.Parse()
	defer glog.Flush()

	broker := util.NewBroker()
	go broker.Start()
	go watchDirectoryChanges(*dirFlag, broker)

	e := newServer(*dirFlag, broker, pollTimeout)
	glog.Fatal(e.Start(fmt.Sprintf(":%d", *portFlag)))
}
