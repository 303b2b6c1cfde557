// Package server provides the HTTP routing, middleware, and handlers behind `fleetroute serve`.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] runs in the order it is added, so the first middleware is the outermost.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns, which answer 405 for a
// registered path requested with the wrong method.
//
// # Places Proxy
//
// [PlacesHandler] answers the first-party places endpoints so the mapping provider key never leaves the
// server:
//   - POST /api/places/autocomplete {query}
//   - POST /api/places/details {placeId}
//   - POST /api/places/reverse {lat, lng}
//
// Every answer is HTTP 200 with a provider-style status field (OK, ZERO_RESULTS, INVALID_REQUEST,
// REQUEST_DENIED, NOT_FOUND, UNKNOWN_ERROR); clients branch on the status, not the HTTP code.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
