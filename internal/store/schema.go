package store

// Schema v1 - catalog tables, join tables, episodes and the run ledger
const schemaV1 = `
-- Movies, keyed by slug. Informational columns are written once.
CREATE TABLE IF NOT EXISTS movies (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  slug TEXT UNIQUE NOT NULL,
  name TEXT NOT NULL DEFAULT '',
  origin_name TEXT NOT NULL DEFAULT '',
  poster_url TEXT NOT NULL DEFAULT '',
  thumb_url TEXT NOT NULL DEFAULT '',
  type TEXT NOT NULL DEFAULT 'series',
  status TEXT NOT NULL DEFAULT 'ongoing',
  year INTEGER,
  quality TEXT NOT NULL DEFAULT '',
  lang TEXT NOT NULL DEFAULT '',
  time TEXT NOT NULL DEFAULT '',
  episode_current TEXT NOT NULL DEFAULT '',
  episode_total TEXT NOT NULL DEFAULT '',
  trailer_url TEXT NOT NULL DEFAULT '',
  content TEXT NOT NULL DEFAULT '',
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Slug keyed taxonomies and people
CREATE TABLE IF NOT EXISTS genres (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  slug TEXT UNIQUE NOT NULL,
  name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS countries (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  slug TEXT UNIQUE NOT NULL,
  name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS categories (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  slug TEXT UNIQUE NOT NULL,
  name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS actors (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  slug TEXT UNIQUE NOT NULL,
  name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS directors (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  slug TEXT UNIQUE NOT NULL,
  name TEXT NOT NULL
);

-- Year dimension keyed by the value itself
CREATE TABLE IF NOT EXISTS years (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  year INTEGER UNIQUE NOT NULL
);

-- Associations; the composite key makes re-linking a no-op
CREATE TABLE IF NOT EXISTS movie_genres (
  movie_id INTEGER NOT NULL REFERENCES movies(id) ON DELETE CASCADE,
  genre_id INTEGER NOT NULL REFERENCES genres(id) ON DELETE CASCADE,
  PRIMARY KEY (movie_id, genre_id)
);

CREATE TABLE IF NOT EXISTS movie_countries (
  movie_id INTEGER NOT NULL REFERENCES movies(id) ON DELETE CASCADE,
  country_id INTEGER NOT NULL REFERENCES countries(id) ON DELETE CASCADE,
  PRIMARY KEY (movie_id, country_id)
);

CREATE TABLE IF NOT EXISTS movie_categories (
  movie_id INTEGER NOT NULL REFERENCES movies(id) ON DELETE CASCADE,
  category_id INTEGER NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
  PRIMARY KEY (movie_id, category_id)
);

CREATE TABLE IF NOT EXISTS movie_actors (
  movie_id INTEGER NOT NULL REFERENCES movies(id) ON DELETE CASCADE,
  actor_id INTEGER NOT NULL REFERENCES actors(id) ON DELETE CASCADE,
  PRIMARY KEY (movie_id, actor_id)
);

CREATE TABLE IF NOT EXISTS movie_directors (
  movie_id INTEGER NOT NULL REFERENCES movies(id) ON DELETE CASCADE,
  director_id INTEGER NOT NULL REFERENCES directors(id) ON DELETE CASCADE,
  PRIMARY KEY (movie_id, director_id)
);

CREATE TABLE IF NOT EXISTS movie_years (
  movie_id INTEGER NOT NULL REFERENCES movies(id) ON DELETE CASCADE,
  year_id INTEGER NOT NULL REFERENCES years(id) ON DELETE CASCADE,
  PRIMARY KEY (movie_id, year_id)
);

-- Episodes are append-only; server_name carries the source tag
CREATE TABLE IF NOT EXISTS episodes (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  movie_id INTEGER NOT NULL REFERENCES movies(id) ON DELETE CASCADE,
  server_name TEXT NOT NULL,
  name TEXT NOT NULL DEFAULT '',
  slug TEXT NOT NULL,
  filename TEXT NOT NULL DEFAULT '',
  link_m3u8 TEXT NOT NULL DEFAULT '',
  link_embed TEXT NOT NULL DEFAULT '',
  link_mp4 TEXT NOT NULL DEFAULT '',
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  UNIQUE (movie_id, server_name, slug)
);

-- Run ledger: one row per crawl
CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  type TEXT NOT NULL DEFAULT '',
  source TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  total INTEGER NOT NULL DEFAULT 0,
  movies_added INTEGER NOT NULL DEFAULT 0,
  movies_updated INTEGER NOT NULL DEFAULT 0,
  movies_skipped INTEGER NOT NULL DEFAULT 0,
  movies_failed INTEGER NOT NULL DEFAULT 0,
  episodes_added INTEGER NOT NULL DEFAULT 0,
  duration_ms INTEGER NOT NULL DEFAULT 0,
  message TEXT NOT NULL DEFAULT '',
  started_at DATETIME NOT NULL,
  finished_at DATETIME
);
`

// Schema v2 - lookup indexes
const schemaV2 = `
CREATE INDEX IF NOT EXISTS idx_episodes_movie ON episodes(movie_id);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_movies_type ON movies(type);
`
