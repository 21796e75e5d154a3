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

package util

// A change to a watched file.
type Notification struct {
	Name    string
	Removed bool
}

// Broadcasts notifications from any number of publishers to every current
// subscriber. Subscribers that fall behind miss notifications rather than
// stall the broker.
type Broker struct {
	stopCh    chan struct{}
	publishCh chan Notification
	subCh     chan chan Notification
	unsubCh   chan chan Notification
}

func NewBroker() *Broker {
	return &Broker{
		stopCh:    make(chan struct{}),
		publishCh: make(chan Notification, 1),
		subCh:     make(chan chan Notification),
		unsubCh:   make(chan chan Notification),
	}
}

// Runs the broker until Stop is called.
func (b *Broker) Start() {
	subs := map[chan Notification]struct{}{}
	defer func() {
		for ch := range subs {
			close(ch)
		}
	}()
	for {
		select {
		case <-b.stopCh:
			return
		case ch := <-b.subCh:
			subs[ch] = struct{}{}
		case ch := <-b.unsubCh:
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
		case n := <-b.publishCh:
			for ch := range subs {
				select {
				case ch <- n:
				default:
				}
			}
		}
	}
}

func (b *Broker) Stop() {
	close(b.stopCh)
}

// Returns once the broker has registered the channel, so a following
// Unsubscribe always finds it. The channel is closed on Unsubscribe or Stop.
func (b *Broker) Subscribe() chan Notification {
	ch := make(chan Notification, 5)
	select {
	case b.subCh <- ch:
	case <-b.stopCh:
		close(ch)
	}
	return ch
}

func (b *Broker) Unsubscribe(ch chan Notification) {
	select {
	case b.unsubCh <- ch:
	case <-b.stopCh:
	}
}

func (b *Broker) Publish(n Notification) {
	select {
	case b.publishCh <- n:
	case <-b.stopCh:
	}
}
