/*
Package middleware provides the reusable steps of the stepwise HTTP pipelines.

# Overview

Every step is a pipeline.Decorator or pipeline.Interceptor bound to the
net/http types of the server package. Decorators add typed fields to the
request context; interceptors wrap the rest of the chain.

# Steps

## Request ID (requestid.go)

RequestID is a decorator that adds the request_id field: the inbound
X-Request-ID header when it is well formed, otherwise a new UUID.
ExposeRequestID copies it to the response header.

## Logging (logging.go)

Logging is an interceptor that logs "request started" before the rest of the
chain and "request completed" with status and duration after it. Handlers may
add attributes to the completion line through AddLogField and AddError.

## Recover (recover.go)

Recover turns a panic in a downstream step into a 500 response.

## Timeout (timeout.go)

Timeout gives downstream steps a context with a deadline and answers 504 when
they fail with context.DeadlineExceeded.

## Tracing (tracing.go)

Tracing wraps the rest of the chain in an OpenTelemetry span.

## Authentication (auth.go)

Credentials adds the credential field from the Authorization header, Principal
resolves it to the user field, and RequireUser answers 401 without calling
next when no user is present. Authenticated appends all three.

## HTMX (htmx.go)

HTMXRequest adds the htmx field parsed from the HX-* request headers, with helpers to
set HTMX response headers.

## Webhook (webhook.go)

Webhook asks an external approval endpoint whether the request may continue.

# Recommended Order

 1. RequestID (first, so every later step can log it)
 2. ExposeRequestID
 3. Logging
 4. Recover
 5. Tracing
 6. Timeout
 7. HTMXRequest and other request-specific decorators and gates
*/
package middleware
