// Package api provides the Rednet REST client and the endpoint wrappers
// for auth, agent, operator, handler and listener resources.
//
// The handler and listener endpoints can also open a duplex channel
// (see package channel) on /handler and /listener. Commands, image
// streams and listener responses travel over that channel as envelopes:
//
//	{"type": "command", "action": "execute", "data": {"command": "ls", "args": []}}
//	{"type": "image", "action": "stream", "data": {"image_data": "...", "metadata": {}}}
//	{"type": "listener", "action": "response", "data": {"magick": "...", "payload": "..."}}
package api
